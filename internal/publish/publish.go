// Package publish uploads schedule views, the calendar feed and the rendered
// site page.
package publish

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"nextmeeting/internal/model"
	"nextmeeting/internal/retry"
	"nextmeeting/internal/schedule"
	"nextmeeting/internal/store"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeICS  = "text/calendar; charset=utf-8"

	defaultCacheControl = "public, max-age=300"
)

// TemplateDownloadError is returned when the page template could not be
// fetched after retries.
type TemplateDownloadError struct {
	Key string
	Err error
}

func (e *TemplateDownloadError) Error() string {
	return fmt.Sprintf("downloading template %s: %v", e.Key, e.Err)
}

func (e *TemplateDownloadError) Unwrap() error {
	return e.Err
}

// Site identifies where a site's artifacts are written.
type Site struct {
	Name   string
	SiteID string
}

// ScheduleKey is the object key of one schedule view.
func ScheduleKey(siteID, scheduleType string) string {
	return "schedules/" + siteID + "/" + scheduleType + ".json"
}

// CalendarKey is the object key of the calendar feed.
func CalendarKey(siteID string) string {
	return "schedules/" + siteID + "/calendar.ics"
}

// TemplateKey is the object key of the page template in the site bucket.
func TemplateKey(siteID string) string {
	return siteID + ".template.html"
}

// PageKey is the object key of the rendered page in the site bucket.
func PageKey(siteID string) string {
	return siteID + ".html"
}

// Options configures a Publisher.
type Options struct {
	// Schedules receives the JSON views and the calendar feed.
	Schedules store.Store
	// Pages holds the templates and receives the rendered pages.
	Pages store.Store

	Upload   retry.Policy
	Template retry.Policy

	// Location is the zone calendar events recur in.
	Location *time.Location
	// DebugDir, when set, receives an indented copy of each full week.
	DebugDir     string
	CacheControl string
}

// Publisher writes a site's artifacts.
type Publisher struct {
	opts Options
}

// New creates a Publisher.
func New(opts Options) *Publisher {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CacheControl == "" {
		opts.CacheControl = defaultCacheControl
	}
	return &Publisher{opts: opts}
}

// Publish uploads every view, the calendar feed and the rendered page of
// one site, and returns the keys written. It stops at the first failure.
func (p *Publisher) Publish(ctx context.Context, site Site, res *schedule.Result) ([]string, error) {
	var written []string

	for _, view := range res.Views {
		data, err := EncodeView(view)
		if err != nil {
			return written, fmt.Errorf("encoding %s: %w", view.Metadata.ScheduleType, err)
		}
		key := ScheduleKey(site.SiteID, view.Metadata.ScheduleType)
		attrs := store.Attrs{
			ContentType:     contentTypeJSON,
			ContentEncoding: "gzip",
			CacheControl:    p.opts.CacheControl,
		}
		if err := p.put(ctx, p.opts.Schedules, key, data, attrs); err != nil {
			return written, err
		}
		written = append(written, key)
	}

	full := res.FullWeek()

	if p.opts.DebugDir != "" {
		if err := p.dump(site, full); err != nil {
			log.Printf("WARNING: debug dump for %s failed: %v", site.Name, err)
		}
	}

	cal := Calendar(site, full, p.opts.Location)
	key := CalendarKey(site.SiteID)
	if err := p.put(ctx, p.opts.Schedules, key, cal, store.Attrs{ContentType: contentTypeICS, CacheControl: p.opts.CacheControl}); err != nil {
		return written, err
	}
	written = append(written, key)

	tmpl, err := p.template(ctx, site.SiteID)
	if err != nil {
		return written, err
	}
	page, err := RenderPage(tmpl, full)
	if err != nil {
		return written, fmt.Errorf("rendering %s: %w", TemplateKey(site.SiteID), err)
	}
	key = PageKey(site.SiteID)
	if err := p.put(ctx, p.opts.Pages, key, page, store.Attrs{ContentType: contentTypeHTML, CacheControl: p.opts.CacheControl}); err != nil {
		return written, err
	}
	written = append(written, key)

	log.Printf("Published %d objects for %s", len(written), site.Name)
	return written, nil
}

func (p *Publisher) put(ctx context.Context, s store.Store, key string, data []byte, attrs store.Attrs) error {
	err := retry.Do(ctx, "upload "+key, p.opts.Upload, func(ctx context.Context) error {
		return s.Put(ctx, key, data, attrs)
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (p *Publisher) template(ctx context.Context, siteID string) ([]byte, error) {
	key := TemplateKey(siteID)
	var data []byte
	err := retry.Do(ctx, "download "+key, p.opts.Template, func(ctx context.Context) error {
		var err error
		data, err = p.opts.Pages.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, &TemplateDownloadError{Key: key, Err: err}
	}
	return data, nil
}

func (p *Publisher) dump(site Site, full model.Schedule) error {
	data, err := json.MarshalIndent(full, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.opts.DebugDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(p.opts.DebugDir, site.SiteID+"-"+model.ScheduleFullWeek+".json")
	return os.WriteFile(path, data, 0644)
}

// EncodeView serializes a view as gzip-compressed JSON.
func EncodeView(view model.Schedule) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(view); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeView reverses EncodeView.
func DecodeView(data []byte) (model.Schedule, error) {
	var view model.Schedule
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return view, err
	}
	defer zr.Close()
	if err := json.NewDecoder(zr).Decode(&view); err != nil {
		return view, err
	}
	return view, nil
}

