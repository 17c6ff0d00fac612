// Package schedule assembles normalized meetings into published views.
package schedule

import (
	"fmt"
	"log"
	"slices"
	"time"

	"nextmeeting/internal/model"
	"nextmeeting/internal/normalize"
	"nextmeeting/internal/sheet"
)

// Window is a time-boxed view over the full week.
type Window struct {
	Name string
	Span time.Duration
}

// DefaultWindows are published alongside the full week.
var DefaultWindows = []Window{
	{Name: model.ScheduleNext24Hours, Span: 24 * time.Hour},
	{Name: model.ScheduleNextSixHours, Span: 6 * time.Hour},
}

// Skipped records a row that produced no meeting.
type Skipped struct {
	Row int
	Err error
}

// Result holds the views built from one sheet.
type Result struct {
	GeneratedAt time.Time
	// Views starts with the full week, followed by one view per window.
	Views   []model.Schedule
	Skipped []Skipped
}

// FullWeek returns the complete sorted view.
func (r *Result) FullWeek() model.Schedule {
	return r.Views[0]
}

// View looks up a view by schedule type.
func (r *Result) View(name string) (model.Schedule, bool) {
	for _, v := range r.Views {
		if v.Metadata.ScheduleType == name {
			return v, true
		}
	}
	return model.Schedule{}, false
}

// Malformed returns skipped rows that were not plain placeholders.
func (r *Result) Malformed() []Skipped {
	var out []Skipped
	for _, s := range r.Skipped {
		if !normalize.IsSkip(s.Err) {
			out = append(out, s)
		}
	}
	return out
}

// RowNormalizer maps one row's cells to a meeting. *normalize.Normalizer
// implements it.
type RowNormalizer interface {
	Row(cells []string, now time.Time) (model.Meeting, error)
}

// Builder turns sheet rows into schedule views for one site.
type Builder struct {
	normalizer RowNormalizer
	site       string
	windows    []Window
}

// NewBuilder creates a Builder. A nil windows slice selects DefaultWindows.
func NewBuilder(n RowNormalizer, site string, windows []Window) *Builder {
	if windows == nil {
		windows = DefaultWindows
	}
	return &Builder{normalizer: n, site: site, windows: windows}
}

// Build normalizes rows, drops skipped ones, sorts by next occurrence and
// derives the windowed views. It performs no I/O besides logging.
func (b *Builder) Build(rows []sheet.Row, now time.Time) *Result {
	res := &Result{GeneratedAt: now.UTC()}
	meetings := make([]model.Meeting, 0, len(rows))

	for _, row := range rows {
		m, err := b.normalizeRow(row, now)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Row: row.Number, Err: err})
			if normalize.IsSkip(err) {
				log.Printf("Row %d skipped: %v", row.Number, err)
			} else {
				log.Printf("ERROR: Row %d skipped: %v", row.Number, err)
			}
			continue
		}
		meetings = append(meetings, m)
	}

	slices.SortStableFunc(meetings, func(a, b model.Meeting) int {
		return a.NextOccurrence.Compare(b.NextOccurrence.Time)
	})

	generatedAt := model.NewTimestamp(now)
	res.Views = append(res.Views, model.Schedule{
		Metadata: model.ScheduleMetadata{
			ScheduleType: model.ScheduleFullWeek,
			GeneratedAt:  generatedAt,
			Site:         b.site,
		},
		Meetings: meetings,
	})

	for _, w := range b.windows {
		cutoff := now.Add(w.Span)
		within := make([]model.Meeting, 0)
		for _, m := range meetings {
			if m.NextOccurrence.Before(cutoff) {
				within = append(within, m)
			}
		}
		res.Views = append(res.Views, model.Schedule{
			Metadata: model.ScheduleMetadata{
				ScheduleType: w.Name,
				GeneratedAt:  generatedAt,
				Site:         b.site,
			},
			Meetings: within,
		})
	}

	return res
}

// normalizeRow keeps a panic in one row from aborting the whole sheet.
func (b *Builder) normalizeRow(row sheet.Row, now time.Time) (m model.Meeting, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &normalize.RowError{Err: fmt.Errorf("unexpected failure: %v", r)}
		}
	}()
	return b.normalizer.Row(row.Cells, now)
}
