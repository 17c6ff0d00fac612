package occurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidTimeFormat is returned for start times that are not 12-hour clock values.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// TimeOfDay is a 24-hour wall clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay converts a spreadsheet time such as "7:00pm", "07:30 AM" or
// "9 p.m." into a 24-hour time. The AM/PM marker is matched case-insensitively.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '.' {
			return -1
		}
		return r
	}, raw)
	s = strings.ToUpper(s)
	if len(s) < 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}

	marker := s[len(s)-2:]
	body := s[:len(s)-2]

	hourPart, minutePart, hasMinutes := strings.Cut(body, ":")
	if len(hourPart) == 1 {
		hourPart = "0" + hourPart
	}
	if !hasMinutes {
		minutePart = "00"
	}
	if len(hourPart) != 2 || len(minutePart) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	if hour < 1 || hour > 12 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimeFormat, raw)
	}

	switch marker {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return TimeOfDay{}, fmt.Errorf("%w: %q has no AM/PM marker", ErrInvalidTimeFormat, raw)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}
