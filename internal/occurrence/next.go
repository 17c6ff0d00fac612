// Package occurrence computes when a weekly meeting next takes place.
package occurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	// DefaultZone is the timezone meeting times are entered in.
	DefaultZone = "America/New_York"

	// DefaultGraceWindow keeps meetings that started recently in the
	// upcoming list instead of rolling them to next week.
	DefaultGraceWindow = 90 * time.Minute
)

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Calculator resolves weekday/time pairs in a reference zone.
type Calculator struct {
	loc   *time.Location
	grace time.Duration
}

// NewCalculator creates a Calculator. A nil location means UTC.
func NewCalculator(loc *time.Location, grace time.Duration) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	if grace < 0 {
		grace = 0
	}
	return &Calculator{loc: loc, grace: grace}
}

// Location returns the reference zone.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Next returns the first weekly occurrence at or after now minus the grace
// window, in UTC.
func (c *Calculator) Next(weekday, timeOfDay string, now time.Time) (time.Time, error) {
	wd, err := ParseWeekday(weekday)
	if err != nil {
		return time.Time{}, err
	}
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return c.next(wd, tod, now)
}

func (c *Calculator) next(wd time.Weekday, tod TimeOfDay, now time.Time) (time.Time, error) {
	threshold := now.Add(-c.grace).In(c.loc)
	y, m, d := threshold.Date()

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   time.Date(y, m, d-1, 0, 0, 0, 0, c.loc),
		Byweekday: []rrule.Weekday{rruleWeekdays[wd]},
		Byhour:    []int{tod.Hour},
		Byminute:  []int{tod.Minute},
		Bysecond:  []int{0},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("building weekly rule: %w", err)
	}

	next := rule.After(threshold, true)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no %s %s occurrence after %s", wd, tod, threshold.Format(time.RFC3339))
	}

	// A time skipped by a spring-forward change comes back an hour early
	// from the rule; time.Date moves it forward past the gap instead.
	if local := next.In(c.loc); local.Hour() != tod.Hour || local.Minute() != tod.Minute {
		y, m, d := local.Date()
		next = time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, c.loc)
	}
	return next.UTC(), nil
}

// Next is a convenience wrapper around Calculator.Next.
func Next(weekday, timeOfDay string, now time.Time, grace time.Duration, loc *time.Location) (time.Time, error) {
	return NewCalculator(loc, grace).Next(weekday, timeOfDay, now)
}

// RRule renders the weekly recurrence of an occurrence for calendar feeds,
// e.g. "FREQ=WEEKLY;BYDAY=MO".
func RRule(occurrence time.Time, loc *time.Location) string {
	if loc != nil {
		occurrence = occurrence.In(loc)
	}
	return "FREQ=WEEKLY;BYDAY=" + rruleWeekdays[occurrence.Weekday()].String()
}
