package sheet

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Field names a semantic column of a meeting sheet.
type Field string

const (
	FieldDay         Field = "day"
	FieldStartTime   Field = "start_time"
	FieldName        Field = "meeting_name"
	FieldMeetingID   Field = "meeting_id"
	FieldPassword    Field = "password"
	FieldJoinURL     Field = "join_url"
	FieldContactInfo Field = "contact_info"
	FieldNotes       Field = "notes"
	FieldIgnore      Field = "-"
)

var knownFields = map[Field]bool{
	FieldDay: true, FieldStartTime: true, FieldName: true, FieldMeetingID: true,
	FieldPassword: true, FieldJoinURL: true, FieldContactInfo: true, FieldNotes: true,
	FieldIgnore: true,
}

// Layout maps cell positions to fields. Headers, when set, are the labels
// expected in the last header row.
type Layout struct {
	Name    string
	Fields  []Field
	Headers []string
}

// Compact is the eight-column sheet layout.
var Compact = Layout{
	Name: "compact",
	Fields: []Field{
		FieldDay, FieldStartTime, FieldName, FieldMeetingID,
		FieldPassword, FieldJoinURL, FieldContactInfo, FieldNotes,
	},
}

// Wide carries three extra regional start-time columns, which are ignored.
var Wide = Layout{
	Name: "wide",
	Fields: []Field{
		FieldDay, FieldStartTime, FieldIgnore, FieldIgnore, FieldIgnore,
		FieldName, FieldMeetingID, FieldPassword, FieldJoinURL,
		FieldContactInfo, FieldNotes,
	},
}

// LayoutByName returns a built-in layout. An empty name selects Compact.
func LayoutByName(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Compact.Name:
		return Compact, nil
	case Wide.Name:
		return Wide, nil
	default:
		return Layout{}, fmt.Errorf("unknown sheet layout %q", name)
	}
}

// NewLayout builds a custom layout, checking that every field is known and
// that the day and start time columns are present exactly once.
func NewLayout(name string, fields []Field, headers []string) (Layout, error) {
	seen := make(map[Field]bool)
	for i, f := range fields {
		if !knownFields[f] {
			return Layout{}, fmt.Errorf("layout %s: unknown field %q at column %d", name, f, i+1)
		}
		if f != FieldIgnore && seen[f] {
			return Layout{}, fmt.Errorf("layout %s: field %q appears twice", name, f)
		}
		seen[f] = true
	}
	for _, required := range []Field{FieldDay, FieldStartTime} {
		if !seen[required] {
			return Layout{}, fmt.Errorf("layout %s: missing required field %q", name, required)
		}
	}
	if len(headers) > len(fields) {
		return Layout{}, fmt.Errorf("layout %s: %d headers for %d columns", name, len(headers), len(fields))
	}
	return Layout{Name: name, Fields: fields, Headers: headers}, nil
}

// WithHeaders returns a copy of l expecting the given header labels.
func (l Layout) WithHeaders(headers []string) Layout {
	l.Headers = headers
	return l
}

// Record is a row with cells assigned to fields. Absent cells are empty.
type Record struct {
	Day         string
	StartTime   string
	Name        string
	MeetingID   string
	Password    string
	JoinURL     string
	ContactInfo string
	Notes       string
}

// Record maps cells positionally. Cells beyond the layout are ignored.
func (l Layout) Record(cells []string) Record {
	var r Record
	for i, f := range l.Fields {
		if i >= len(cells) {
			break
		}
		v := cells[i]
		switch f {
		case FieldDay:
			r.Day = v
		case FieldStartTime:
			r.StartTime = v
		case FieldName:
			r.Name = v
		case FieldMeetingID:
			r.MeetingID = v
		case FieldPassword:
			r.Password = v
		case FieldJoinURL:
			r.JoinURL = v
		case FieldContactInfo:
			r.ContactInfo = v
		case FieldNotes:
			r.Notes = v
		}
	}
	return r
}

// HeaderMismatch is one column whose header label differs from the layout.
type HeaderMismatch struct {
	Column int
	Want   string
	Got    string
}

// SchemaMismatchError reports a header row that does not match the layout.
type SchemaMismatchError struct {
	Layout     string
	Mismatches []HeaderMismatch
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = fmt.Sprintf("column %d: want %q, got %q", m.Column, m.Want, m.Got)
	}
	return fmt.Sprintf("sheet header does not match layout %s: %s", e.Layout, strings.Join(parts, "; "))
}

// CheckHeader compares a header row with the layout's expected labels.
// Comparison ignores case and repeated whitespace; empty expected labels
// are not checked.
func (l Layout) CheckHeader(cells []string) error {
	var mismatches []HeaderMismatch
	for i, want := range l.Headers {
		if want == "" {
			continue
		}
		got := ""
		if i < len(cells) {
			got = cells[i]
		}
		if headerKey(got) != headerKey(want) {
			mismatches = append(mismatches, HeaderMismatch{Column: i + 1, Want: want, Got: got})
		}
	}
	if len(mismatches) > 0 {
		return &SchemaMismatchError{Layout: l.Name, Mismatches: mismatches}
	}
	return nil
}

func headerKey(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
