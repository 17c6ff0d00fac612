// Package job runs one regeneration pass over every configured site.
package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"nextmeeting/internal/cdn"
	"nextmeeting/internal/config"
	"nextmeeting/internal/model"
	"nextmeeting/internal/normalize"
	"nextmeeting/internal/notify"
	"nextmeeting/internal/occurrence"
	"nextmeeting/internal/publish"
	"nextmeeting/internal/retry"
	"nextmeeting/internal/schedule"
	"nextmeeting/internal/sheet"
)

// Stages a site can fail in.
var (
	ErrSheetFetch = errors.New("sheet fetch failed")
	ErrPublish    = errors.New("publish failed")
)

// SiteError is a failure isolated to one site.
type SiteError struct {
	Site  string
	Stage error
	Err   error
}

func (e *SiteError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Site, e.Stage, e.Err)
}

// Unwrap exposes both the stage sentinel and the cause.
func (e *SiteError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

// Publisher writes a site's artifacts.
type Publisher interface {
	Publish(ctx context.Context, site publish.Site, res *schedule.Result) ([]string, error)
}

// RunLog stores run reports.
type RunLog interface {
	RecordRun(ctx context.Context, report *model.RunReport) error
	Prune(ctx context.Context, retain int) (int, error)
}

// Options configures a Runner. Invalidator, Notifier and RunLog may be nil.
type Options struct {
	Sites       []config.Site
	Reader      sheet.Reader
	Publisher   Publisher
	Invalidator cdn.Invalidator
	CDNPaths    []string
	Notifier    notify.Notifier
	RunLog      RunLog
	RunLogKeep  int

	Location    *time.Location
	GraceWindow time.Duration
	Retry       retry.Policy

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner regenerates every site in order.
type Runner struct {
	opts Options
	calc *occurrence.Calculator
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		opts: opts,
		calc: occurrence.NewCalculator(opts.Location, opts.GraceWindow),
	}
}

// Run processes the sites sequentially, invalidates the CDN once and sends
// the notification. Site failures are recorded in the report; the returned
// error is non-nil only when the run log or the notification fails.
func (r *Runner) Run(ctx context.Context) (*model.RunReport, error) {
	runID, err := cdn.NewReference()
	if err != nil {
		return nil, err
	}
	report := &model.RunReport{RunID: runID, StartedAt: r.opts.Now().UTC()}
	log.Printf("Starting run %s for %d sites", runID, len(r.opts.Sites))

	published := 0
	for _, site := range r.opts.Sites {
		sr, err := r.runSite(ctx, site)
		if err != nil {
			log.Printf("ERROR: %v", err)
			sr.Error = err.Error()
			report.Errors = append(report.Errors, err.Error())
		} else {
			published++
		}
		report.Sites = append(report.Sites, sr)
	}

	if r.opts.Invalidator != nil && published > 0 {
		log.Printf("Invalidating CDN...")
		ref, err := r.opts.Invalidator.Invalidate(ctx, r.opts.CDNPaths)
		report.InvalidationRef = ref
		if err != nil {
			log.Printf("ERROR: CDN invalidation: %v", err)
			report.Errors = append(report.Errors, fmt.Sprintf("CDN invalidation: %v", err))
		} else {
			log.Printf("Invalidated (%s)", ref)
		}
	}

	report.FinishedAt = r.opts.Now().UTC()
	log.Printf("Run %s finished: %d/%d sites published, %d errors",
		runID, published, len(r.opts.Sites), len(report.Errors))

	var errs []error
	if r.opts.RunLog != nil {
		if err := r.opts.RunLog.RecordRun(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("recording run: %w", err))
		} else if n, err := r.opts.RunLog.Prune(ctx, r.opts.RunLogKeep); err != nil {
			log.Printf("WARNING: pruning run log: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d old runs", n)
		}
	}
	if r.opts.Notifier != nil {
		if err := r.opts.Notifier.Notify(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("sending notification: %w", err))
		}
	}
	return report, errors.Join(errs...)
}

func (r *Runner) runSite(ctx context.Context, site config.Site) (model.SiteReport, error) {
	sr := model.SiteReport{Name: site.Name, SiteID: site.SiteID}
	log.Printf("Rebuilding site %q (%s)", site.Name, site.SiteID)

	res, err := r.BuildSite(ctx, site)
	if err != nil {
		return sr, err
	}
	sr.Meetings = len(res.FullWeek().Meetings)
	sr.Skipped = len(res.Skipped)

	if _, err := r.opts.Publisher.Publish(ctx, publish.Site{Name: site.Name, SiteID: site.SiteID}, res); err != nil {
		return sr, &SiteError{Site: site.Name, Stage: ErrPublish, Err: err}
	}
	return sr, nil
}

// BuildSite fetches a site's sheet, checks its header and builds the views.
func (r *Runner) BuildSite(ctx context.Context, site config.Site) (*schedule.Result, error) {
	layout, err := site.SheetLayout()
	if err != nil {
		return nil, &SiteError{Site: site.Name, Stage: ErrSheetFetch, Err: err}
	}

	var grid *sheet.Grid
	err = retry.Do(ctx, "fetch sheet "+site.Name, r.opts.Retry, func(ctx context.Context) error {
		var err error
		grid, err = r.opts.Reader.Fetch(ctx, site.SheetID)
		return err
	})
	if err != nil {
		return nil, &SiteError{Site: site.Name, Stage: ErrSheetFetch, Err: err}
	}
	log.Printf("Downloaded %q (%d rows)", grid.Title, grid.RowCount())

	headerRows := site.HeaderRowCount()
	if headerRows > 0 && len(layout.Headers) > 0 {
		var header []string
		if headerRows <= grid.RowCount() {
			header = grid.Rows[headerRows-1]
		}
		if err := layout.CheckHeader(header); err != nil {
			return nil, &SiteError{Site: site.Name, Stage: ErrSheetFetch, Err: err}
		}
	}

	n := normalize.New(normalize.Options{
		Layout:     layout,
		Calculator: r.calc,
		Fellowship: site.Fellowship,
	})
	rows := grid.DataRows(headerRows, site.TrailingRows)
	res := schedule.NewBuilder(n, site.SiteID, nil).Build(rows, r.opts.Now())
	log.Printf("Generated schedule for %s: %d meetings from %d rows (%d skipped)",
		site.Name, len(res.FullWeek().Meetings), len(rows), len(res.Skipped))
	return res, nil
}
