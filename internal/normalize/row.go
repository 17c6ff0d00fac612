// Package normalize turns spreadsheet rows into published meetings.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"nextmeeting/internal/model"
	"nextmeeting/internal/occurrence"
	"nextmeeting/internal/sheet"
)

// Reasons a row is skipped without being treated as malformed.
var (
	ErrMissingStartTime    = errors.New("missing start time")
	ErrUnparsableStartTime = errors.New("start time has no digits")
	ErrNoConnectionInfo    = errors.New("no meeting id, password or join url")
)

// UntitledMeeting is published for rows without a name.
const UntitledMeeting = "<Untitled Meeting>"

const defaultLanguage = "en"

// RowError is a row that looked like a meeting but could not be normalized.
type RowError struct {
	Name string
	Err  error
}

func (e *RowError) Error() string {
	name := e.Name
	if name == "" {
		name = UntitledMeeting
	}
	return fmt.Sprintf("meeting %q: %v", name, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// IsSkip reports whether err marks a placeholder row rather than a malformed one.
func IsSkip(err error) bool {
	return errors.Is(err, ErrMissingStartTime) ||
		errors.Is(err, ErrUnparsableStartTime) ||
		errors.Is(err, ErrNoConnectionInfo)
}

// Options configures a Normalizer.
type Options struct {
	Layout     sheet.Layout
	Calculator *occurrence.Calculator
	Fellowship string
	Language   string
}

// Normalizer maps rows of one site's sheet to meetings.
type Normalizer struct {
	layout     sheet.Layout
	calc       *occurrence.Calculator
	fellowship string
	language   string
}

func New(opts Options) *Normalizer {
	if opts.Layout.Fields == nil {
		opts.Layout = sheet.Compact
	}
	if opts.Calculator == nil {
		opts.Calculator = occurrence.NewCalculator(time.UTC, occurrence.DefaultGraceWindow)
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	return &Normalizer{
		layout:     opts.Layout,
		calc:       opts.Calculator,
		fellowship: opts.Fellowship,
		language:   opts.Language,
	}
}

// Row normalizes one row. Placeholder rows return one of the skip errors;
// rows with an unreadable day or time return a *RowError.
func (n *Normalizer) Row(cells []string, now time.Time) (model.Meeting, error) {
	cleaned := make([]string, len(cells))
	for i, c := range cells {
		cleaned[i] = sheet.CleanCell(c)
	}
	rec := n.layout.Record(cleaned)

	if rec.StartTime == "" {
		return model.Meeting{}, ErrMissingStartTime
	}
	if !strings.ContainsFunc(rec.StartTime, unicode.IsDigit) {
		return model.Meeting{}, ErrUnparsableStartTime
	}
	if rec.MeetingID == "" && rec.Password == "" && rec.JoinURL == "" {
		return model.Meeting{}, ErrNoConnectionInfo
	}

	next, err := n.calc.Next(rec.Day, rec.StartTime, now)
	if err != nil {
		return model.Meeting{}, &RowError{Name: rec.Name, Err: err}
	}

	name := rec.Name
	if name == "" {
		name = UntitledMeeting
	}

	return model.Meeting{
		Name:           name,
		NextOccurrence: model.NewTimestamp(next),
		ConnectionDetails: model.ConnectionDetails{
			Platform:                     Platform(rec.JoinURL),
			MustContactForConnectionInfo: rec.JoinURL == "",
			MeetingID:                    rec.MeetingID,
			Password:                     rec.Password,
			JoinURL:                      rec.JoinURL,
		},
		ContactInfo:      rec.ContactInfo,
		FeedbackEmail:    ExtractEmail(rec.ContactInfo),
		Notes:            rec.Notes,
		ParticipantCount: "",
		DurationMinutes:  model.DefaultDurationMinutes,
		Metadata: model.MeetingMetadata{
			HostLocation: "",
			Language:     n.language,
			Fellowship:   fellowship(rec.Name, n.fellowship),
			Restrictions: model.Restrictions{
				OpenMeeting: IsOpenMeeting(rec.Name),
				Gender:      GenderRestriction(rec.Name),
			},
		},
	}, nil
}
