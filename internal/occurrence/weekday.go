package occurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// ErrUnknownWeekday is returned when a day cell does not name a weekday.
var ErrUnknownWeekday = errors.New("unknown weekday")

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"thurs":     time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"satrday":   time.Saturday, // misspelling present in the live sheets
	"sat":       time.Saturday,
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
}

// ParseWeekday resolves a day-of-week cell, ignoring case and surrounding space.
func ParseWeekday(name string) (time.Weekday, error) {
	key := cases.Fold().String(strings.TrimSpace(name))
	if key == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnknownWeekday)
	}
	wd, ok := weekdayNames[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return wd, nil
}
