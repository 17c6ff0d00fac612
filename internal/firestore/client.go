// Package firestore keeps an audit log of job runs in Firestore. The job
// only writes to it; the history command reads it back.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"nextmeeting/internal/model"
)

const batchSize = 250 // Stay well under Firestore's 500 operation limit

// DefaultCollection holds one document per run.
const DefaultCollection = "schedule_runs"

// RunLog wraps the Firestore client for run reports.
type RunLog struct {
	client     *firestore.Client
	collection string
}

// New creates a new run log.
func New(ctx context.Context, projectID, collection string) (*RunLog, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &RunLog{
		client:     client,
		collection: collection,
	}, nil
}

// Close closes the Firestore client.
func (l *RunLog) Close() error {
	return l.client.Close()
}

// RecordRun writes a report under its run ID, replacing any earlier write.
func (l *RunLog) RecordRun(ctx context.Context, report *model.RunReport) error {
	doc := l.client.Collection(l.collection).Doc(report.RunID)
	if _, err := doc.Set(ctx, reportToMap(report)); err != nil {
		return fmt.Errorf("writing run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns up to limit reports, newest first.
func (l *RunLog) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	query := l.client.Collection(l.collection).OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reports []model.RunReport
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating runs: %w", err)
		}
		reports = append(reports, mapToReport(doc.Ref.ID, doc.Data()))
	}
	return reports, nil
}

// Prune deletes every report older than the newest retain ones and returns
// the number removed. A retain of zero or less keeps everything.
func (l *RunLog) Prune(ctx context.Context, retain int) (int, error) {
	if retain <= 0 {
		return 0, nil
	}
	query := l.client.Collection(l.collection).
		OrderBy("started_at", firestore.Desc).
		Offset(retain)

	total := 0
	for {
		iter := query.Limit(batchSize).Documents(ctx)
		batch := l.client.Batch()
		numDeleted := 0

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return total, fmt.Errorf("iterating runs: %w", err)
			}
			batch.Delete(doc.Ref)
			numDeleted++
		}
		iter.Stop()

		if numDeleted == 0 {
			return total, nil
		}

		if _, err := batch.Commit(ctx); err != nil {
			return total, fmt.Errorf("committing delete batch: %w", err)
		}
		total += numDeleted

		if numDeleted < batchSize {
			return total, nil
		}
	}
}

// reportToMap converts a RunReport to a Firestore document map.
func reportToMap(r *model.RunReport) map[string]interface{} {
	sites := make([]interface{}, 0, len(r.Sites))
	for _, s := range r.Sites {
		site := map[string]interface{}{
			"name":     s.Name,
			"site_id":  s.SiteID,
			"meetings": s.Meetings,
			"skipped":  s.Skipped,
		}
		if s.Error != "" {
			site["error"] = s.Error
		}
		sites = append(sites, site)
	}

	m := map[string]interface{}{
		"started_at":  r.StartedAt,
		"finished_at": r.FinishedAt,
		"sites":       sites,
		"failed":      r.Failed(),
	}
	if r.InvalidationRef != "" {
		m["invalidation_ref"] = r.InvalidationRef
	}
	if len(r.Errors) > 0 {
		m["errors"] = r.Errors
	}
	return m
}

// mapToReport converts a Firestore document map to a RunReport.
func mapToReport(id string, m map[string]interface{}) model.RunReport {
	r := model.RunReport{RunID: id}

	if v, ok := m["started_at"].(time.Time); ok {
		r.StartedAt = v
	}
	if v, ok := m["finished_at"].(time.Time); ok {
		r.FinishedAt = v
	}
	if v, ok := m["invalidation_ref"].(string); ok {
		r.InvalidationRef = v
	}
	if v, ok := m["errors"].([]interface{}); ok {
		for _, e := range v {
			if s, ok := e.(string); ok {
				r.Errors = append(r.Errors, s)
			}
		}
	}
	if v, ok := m["sites"].([]interface{}); ok {
		for _, raw := range v {
			site, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			var s model.SiteReport
			if v, ok := site["name"].(string); ok {
				s.Name = v
			}
			if v, ok := site["site_id"].(string); ok {
				s.SiteID = v
			}
			s.Meetings = toInt(site["meetings"])
			s.Skipped = toInt(site["skipped"])
			if v, ok := site["error"].(string); ok {
				s.Error = v
			}
			r.Sites = append(r.Sites, s)
		}
	}
	return r
}

// toInt accepts the int64 Firestore returns as well as plain ints.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
