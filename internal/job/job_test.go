package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"nextmeeting/internal/config"
	"nextmeeting/internal/model"
	"nextmeeting/internal/publish"
	"nextmeeting/internal/retry"
	"nextmeeting/internal/schedule"
	"nextmeeting/internal/sheet"
)

var now = time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)

type fakeReader struct {
	mu       sync.Mutex
	grids    map[string]*sheet.Grid
	failures map[string]int // transient failures before success
	calls    map[string]int
}

func (f *fakeReader) Fetch(ctx context.Context, sheetID string) (*sheet.Grid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sheetID]++
	if f.failures[sheetID] > 0 {
		f.failures[sheetID]--
		return nil, errors.New("503 backend error")
	}
	g, ok := f.grids[sheetID]
	if !ok {
		return nil, retry.Permanent(errors.New("404 spreadsheet not found"))
	}
	return g, nil
}

type fakePublisher struct {
	results map[string]*schedule.Result
	fail    map[string]error
}

func (f *fakePublisher) Publish(ctx context.Context, site publish.Site, res *schedule.Result) ([]string, error) {
	if err := f.fail[site.SiteID]; err != nil {
		return nil, err
	}
	f.results[site.SiteID] = res
	return []string{publish.PageKey(site.SiteID)}, nil
}

type fakeInvalidator struct {
	calls int
	paths []string
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, paths []string) (string, error) {
	f.calls++
	f.paths = paths
	if f.err != nil {
		return "", f.err
	}
	return "op-1", nil
}

type fakeNotifier struct {
	reports []*model.RunReport
	err     error
}

func (f *fakeNotifier) Notify(ctx context.Context, r *model.RunReport) error {
	f.reports = append(f.reports, r)
	return f.err
}

type fakeRunLog struct {
	recorded []*model.RunReport
	retained int
	err      error
}

func (f *fakeRunLog) RecordRun(ctx context.Context, r *model.RunReport) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, r)
	return nil
}

func (f *fakeRunLog) Prune(ctx context.Context, retain int) (int, error) {
	f.retained = retain
	return 0, nil
}

func grid(rows ...[]string) *sheet.Grid {
	header := [][]string{{"Meeting schedule"}, {"Day", "Start Time", "Meeting Name", "Meeting ID", "Password", "Join URL"}}
	return sheet.NewGrid("Schedule", append(header, rows...))
}

type fixture struct {
	reader    *fakeReader
	publisher *fakePublisher
	cdn       *fakeInvalidator
	notifier  *fakeNotifier
	runLog    *fakeRunLog
	sites     []config.Site
}

func newFixture() *fixture {
	return &fixture{
		reader: &fakeReader{
			grids: map[string]*sheet.Grid{
				"sheet-a": grid(
					[]string{"Monday", "7:00pm", "Monday Night", "1", "", "https://zoom.us/j/1"},
					[]string{"Wednesday", "3:00pm", "Afternoon", "2"},
					[]string{"Friday", "", "No Time", "3"},
				),
				"sheet-b": grid(
					[]string{"Thursday", "7:00am", "Morning", "4"},
				),
			},
			failures: map[string]int{},
			calls:    map[string]int{},
		},
		publisher: &fakePublisher{results: map[string]*schedule.Result{}, fail: map[string]error{}},
		cdn:       &fakeInvalidator{},
		notifier:  &fakeNotifier{},
		runLog:    &fakeRunLog{},
		sites: []config.Site{
			{Name: "A", SheetID: "sheet-a", SiteID: "site-a", Fellowship: "sa"},
			{Name: "B", SheetID: "sheet-b", SiteID: "site-b"},
		},
	}
}

func (f *fixture) runner(t *testing.T) *Runner {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	return New(Options{
		Sites:       f.sites,
		Reader:      f.reader,
		Publisher:   f.publisher,
		Invalidator: f.cdn,
		CDNPaths:    []string{"/*"},
		Notifier:    f.notifier,
		RunLog:      f.runLog,
		RunLogKeep:  50,
		Location:    loc,
		GraceWindow: 90 * time.Minute,
		Retry:       retry.Policy{Attempts: 3, Delay: time.Millisecond},
		Now:         func() time.Time { return now },
	})
}

func TestRunSuccess(t *testing.T) {
	f := newFixture()

	report, err := f.runner(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() || report.RunID == "" || report.InvalidationRef != "op-1" {
		t.Errorf("report = %+v", report)
	}
	if len(report.Sites) != 2 || report.Sites[0].Meetings != 2 || report.Sites[0].Skipped != 1 || report.Sites[1].Meetings != 1 {
		t.Errorf("sites = %+v", report.Sites)
	}

	full := f.publisher.results["site-a"].FullWeek()
	if full.Metadata.Site != "site-a" || full.Meetings[0].Name != "Afternoon" {
		t.Errorf("full week = %+v", full)
	}
	if full.Meetings[0].Metadata.Fellowship != "sa" {
		t.Errorf("fellowship = %q", full.Meetings[0].Metadata.Fellowship)
	}

	if f.cdn.calls != 1 {
		t.Errorf("invalidations = %d, want 1", f.cdn.calls)
	}
	if len(f.notifier.reports) != 1 || len(f.runLog.recorded) != 1 || f.runLog.retained != 50 {
		t.Errorf("notified %d, recorded %d", len(f.notifier.reports), len(f.runLog.recorded))
	}
}

func TestRunIsolatesSiteFailures(t *testing.T) {
	f := newFixture()
	f.sites = append([]config.Site{{Name: "Gone", SheetID: "missing", SiteID: "site-x"}}, f.sites...)
	f.publisher.fail["site-b"] = errors.New("bucket unavailable")

	report, err := f.runner(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Failed() || len(report.Errors) != 2 {
		t.Fatalf("errors = %v", report.Errors)
	}
	if !strings.Contains(report.Sites[0].Error, "sheet fetch failed") || !strings.Contains(report.Sites[2].Error, "publish failed") {
		t.Errorf("sites = %+v", report.Sites)
	}
	if report.Sites[1].Error != "" {
		t.Errorf("site A failed: %s", report.Sites[1].Error)
	}
	// A permanent error is not retried.
	if f.reader.calls["missing"] != 1 {
		t.Errorf("fetches of missing sheet = %d", f.reader.calls["missing"])
	}
	if f.cdn.calls != 1 {
		t.Errorf("invalidations = %d, want 1", f.cdn.calls)
	}
	if len(f.notifier.reports) != 1 || !f.notifier.reports[0].Failed() {
		t.Error("error notification not sent")
	}
}

func TestRunRetriesTransientFetch(t *testing.T) {
	f := newFixture()
	f.reader.failures["sheet-a"] = 2

	report, err := f.runner(t).Run(context.Background())
	if err != nil || report.Failed() {
		t.Fatalf("Run: %v, %v", err, report.Errors)
	}
	if f.reader.calls["sheet-a"] != 3 {
		t.Errorf("fetches = %d, want 3", f.reader.calls["sheet-a"])
	}
}

func TestRunAllSitesFailedSkipsInvalidation(t *testing.T) {
	f := newFixture()
	f.reader.grids = map[string]*sheet.Grid{}

	report, _ := f.runner(t).Run(context.Background())
	if f.cdn.calls != 0 {
		t.Errorf("invalidations = %d, want 0", f.cdn.calls)
	}
	if len(report.Errors) != 2 {
		t.Errorf("errors = %v", report.Errors)
	}
}

func TestRunInvalidationFailure(t *testing.T) {
	f := newFixture()
	f.cdn.err = errors.New("quota exceeded")

	report, err := f.runner(t).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "CDN invalidation") {
		t.Errorf("errors = %v", report.Errors)
	}
}

func TestRunReturnsNotificationAndLogErrors(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("webhook down")
	f.runLog.err = errors.New("firestore down")

	_, err := f.runner(t).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "webhook down") || !strings.Contains(err.Error(), "firestore down") {
		t.Errorf("Run error = %v", err)
	}
}

func TestBuildSiteHeaderMismatch(t *testing.T) {
	f := newFixture()
	site := f.sites[0]
	site.Headers = []string{"Day", "Time"}

	_, err := f.runner(t).BuildSite(context.Background(), site)

	var siteErr *SiteError
	if !errors.As(err, &siteErr) || !errors.Is(err, ErrSheetFetch) {
		t.Fatalf("BuildSite error = %v", err)
	}
	var schemaErr *sheet.SchemaMismatchError
	if !errors.As(err, &schemaErr) || len(schemaErr.Mismatches) != 1 || schemaErr.Mismatches[0].Column != 2 {
		t.Errorf("schema error = %v", err)
	}
}

func TestBuildSiteHeaderMatch(t *testing.T) {
	f := newFixture()
	site := f.sites[0]
	site.Headers = []string{"day", "start  time"}

	res, err := f.runner(t).BuildSite(context.Background(), site)
	if err != nil {
		t.Fatalf("BuildSite: %v", err)
	}
	if len(res.FullWeek().Meetings) != 2 {
		t.Errorf("meetings = %d", len(res.FullWeek().Meetings))
	}
}

func TestBuildSiteTrailingRows(t *testing.T) {
	f := newFixture()
	site := f.sites[0]
	site.TrailingRows = 2

	res, err := f.runner(t).BuildSite(context.Background(), site)
	if err != nil {
		t.Fatalf("BuildSite: %v", err)
	}
	if got := res.FullWeek().Meetings; len(got) != 1 || got[0].Name != "Monday Night" {
		t.Errorf("meetings = %+v", got)
	}
}
