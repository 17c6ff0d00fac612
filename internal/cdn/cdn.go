// Package cdn purges cached copies of published objects.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"nextmeeting/internal/retry"
)

// DefaultPaths purges every cached object behind the URL map.
var DefaultPaths = []string{"/*"}

// Invalidator starts a cache invalidation and returns a reference to it.
type Invalidator interface {
	Invalidate(ctx context.Context, paths []string) (string, error)
}

// CloudCDN invalidates Cloud CDN caches attached to a URL map.
type CloudCDN struct {
	svc     *compute.Service
	project string
	urlMap  string
	policy  retry.Policy
}

// NewCloudCDN creates an invalidator for urlMap in project.
func NewCloudCDN(ctx context.Context, project, urlMap string, policy retry.Policy, opts ...option.ClientOption) (*CloudCDN, error) {
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating compute client: %w", err)
	}
	return &CloudCDN{svc: svc, project: project, urlMap: urlMap, policy: policy}, nil
}

// Invalidate submits one invalidation per path. Each path gets a fresh
// request id that is reused across retries, so a retried request is not
// applied twice. The returned reference lists the operation names.
func (c *CloudCDN) Invalidate(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	var ops []string
	for _, path := range paths {
		requestID, err := NewReference()
		if err != nil {
			return strings.Join(ops, ","), err
		}

		var op *compute.Operation
		err = retry.Do(ctx, "invalidate "+path, c.policy, func(ctx context.Context) error {
			var err error
			op, err = c.svc.UrlMaps.InvalidateCache(c.project, c.urlMap, &compute.CacheInvalidationRule{Path: path}).
				RequestId(requestID).
				Context(ctx).
				Do()
			return classify(err)
		})
		if err != nil {
			return strings.Join(ops, ","), fmt.Errorf("invalidating %s on %s: %w", path, c.urlMap, err)
		}

		name := requestID
		if op != nil && op.Name != "" {
			name = op.Name
		}
		log.Printf("Invalidation %s submitted for %s", name, path)
		ops = append(ops, name)
	}
	return strings.Join(ops, ","), nil
}

// NewReference returns a time-ordered unique id.
func NewReference() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating reference: %w", err)
	}
	return id.String(), nil
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}
