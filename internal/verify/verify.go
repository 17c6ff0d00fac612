// Package verify checks that a published page carries a fresh schedule.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"nextmeeting/internal/model"
)

const scheduleConst = "const JSON_SCHEDULE="

var (
	ErrNoSchedule = errors.New("page has no embedded schedule")
	ErrStale      = errors.New("embedded schedule is stale")
)

// Summary describes the schedule embedded in a page.
type Summary struct {
	Title        string    `json:"title"`
	ScheduleType string    `json:"scheduleType"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Meetings     int       `json:"meetings"`
}

// Check returns ErrStale when the schedule was generated more than maxAge
// before now. A zero maxAge disables the check.
func (s Summary) Check(now time.Time, maxAge time.Duration) error {
	if maxAge <= 0 {
		return nil
	}
	if age := now.Sub(s.GeneratedAt); age > maxAge {
		return fmt.Errorf("%w: generated %s ago", ErrStale, age.Round(time.Second))
	}
	return nil
}

// Static extracts the schedule from page HTML without running scripts.
func Static(page []byte) (*Summary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var payload string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if i := strings.Index(text, scheduleConst); i >= 0 {
			payload = text[i+len(scheduleConst):]
			return false
		}
		return true
	})
	if payload == "" {
		return nil, ErrNoSchedule
	}

	// The decoder stops after the first JSON value, ignoring the rest of the script.
	var schedule model.Schedule
	if err := json.NewDecoder(strings.NewReader(payload)).Decode(&schedule); err != nil {
		return nil, fmt.Errorf("decoding embedded schedule: %w", err)
	}
	return &Summary{
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		ScheduleType: schedule.Metadata.ScheduleType,
		GeneratedAt:  schedule.Metadata.GeneratedAt.Time,
		Meetings:     len(schedule.Meetings),
	}, nil
}

// evalSummary runs in the page and reads the rendered JSON_SCHEDULE.
const evalSummary = `(function () {
  if (typeof JSON_SCHEDULE === "undefined") { return null; }
  return {
    title: document.title,
    scheduleType: JSON_SCHEDULE.metadata.scheduleType,
    generatedAt: JSON_SCHEDULE.metadata.generatedAt,
    meetings: JSON_SCHEDULE.meetings.length
  };
})()`

// Browser loads url in headless Chrome and reads the schedule the page's
// scripts see. CHROME_PATH selects the browser binary.
func Browser(ctx context.Context, url string) (*Summary, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	opts = append(opts,
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	var raw []byte
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Evaluate(evalSummary, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}
	return parseSummary(raw)
}

func parseSummary(raw []byte) (*Summary, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, ErrNoSchedule
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding page summary: %w", err)
	}
	return &s, nil
}
