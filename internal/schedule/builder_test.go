package schedule

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"nextmeeting/internal/model"
	"nextmeeting/internal/normalize"
	"nextmeeting/internal/occurrence"
	"nextmeeting/internal/sheet"
)

// now is Wednesday 2024-01-10 12:00 US Eastern.
var now = time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	loc, err := time.LoadLocation(occurrence.DefaultZone)
	if err != nil {
		t.Fatalf("loading zone: %v", err)
	}
	n := normalize.New(normalize.Options{
		Layout:     sheet.Compact,
		Calculator: occurrence.NewCalculator(loc, occurrence.DefaultGraceWindow),
	})
	return NewBuilder(n, "SITE-1", nil)
}

func rows(cells ...[]string) []sheet.Row {
	out := make([]sheet.Row, len(cells))
	for i, c := range cells {
		out[i] = sheet.Row{Number: i + 3, Cells: c}
	}
	return out
}

func sampleRows() []sheet.Row {
	return rows(
		[]string{"Monday", "7:00pm", "Monday Night", "1", "", "https://zoom.us/j/1"},
		[]string{"Wednesday", "3:00pm", "Afternoon Open", "2", "", "https://zoom.us/j/2"},
		[]string{"Wednesday", "11:30am", "Already Started", "3", "", ""},
		[]string{"Thursday", "7:00am", "Morning A", "4", "", ""},
		[]string{"Thursday", "7:00am", "Morning B", "5", "", ""},
		[]string{"Wednesday", "", "No Time", "6", "", ""},
		[]string{"Friday", "7:00pm", "Placeholder", "", "", ""},
		[]string{"Someday", "7:00pm", "Bad Day", "7", "", ""},
		[]string{"Wednesday", "9:00am", "Rolled Over", "8", "", ""},
	)
}

func TestBuildFullWeek(t *testing.T) {
	res := newBuilder(t).Build(sampleRows(), now)

	full := res.FullWeek()
	if full.Metadata.ScheduleType != model.ScheduleFullWeek || full.Metadata.Site != "SITE-1" {
		t.Errorf("metadata = %+v", full.Metadata)
	}

	var names []string
	for _, m := range full.Meetings {
		names = append(names, m.Name)
	}
	want := []string{"Already Started", "Afternoon Open", "Morning A", "Morning B", "Monday Night", "Rolled Over"}
	if len(names) != len(want) {
		t.Fatalf("meetings = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("meetings = %v, want %v", names, want)
		}
	}

	for i := 1; i < len(full.Meetings); i++ {
		if full.Meetings[i].NextOccurrence.Before(full.Meetings[i-1].NextOccurrence.Time) {
			t.Errorf("meeting %d out of order", i)
		}
		if full.Meetings[i].NextOccurrence.String() < full.Meetings[i-1].NextOccurrence.String() {
			t.Errorf("serialized timestamps of meeting %d do not sort", i)
		}
	}

	if len(res.Skipped) != 3 {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if res.Skipped[0].Row != 8 || !errors.Is(res.Skipped[0].Err, normalize.ErrMissingStartTime) {
		t.Errorf("first skip = %+v", res.Skipped[0])
	}
	malformed := res.Malformed()
	if len(malformed) != 1 || !errors.Is(malformed[0].Err, occurrence.ErrUnknownWeekday) {
		t.Errorf("malformed = %+v", malformed)
	}
}

func TestBuildWindows(t *testing.T) {
	res := newBuilder(t).Build(sampleRows(), now)
	full := res.FullWeek()

	for _, w := range DefaultWindows {
		view, ok := res.View(w.Name)
		if !ok {
			t.Fatalf("view %s missing", w.Name)
		}
		if !view.Metadata.GeneratedAt.Equal(now) {
			t.Errorf("%s generatedAt = %s", w.Name, view.Metadata.GeneratedAt)
		}

		cutoff := now.Add(w.Span)
		inFull := 0
		for _, m := range full.Meetings {
			if m.NextOccurrence.Before(cutoff) {
				inFull++
			}
		}
		if len(view.Meetings) != inFull {
			t.Errorf("%s has %d meetings, want %d", w.Name, len(view.Meetings), inFull)
		}
		for i, m := range view.Meetings {
			if !m.NextOccurrence.Before(cutoff) {
				t.Errorf("%s meeting %q at %s not before %s", w.Name, m.Name, m.NextOccurrence, cutoff)
			}
			if full.Meetings[i].Name != m.Name {
				t.Errorf("%s is not a prefix of the full week", w.Name)
			}
		}
	}

	six, _ := res.View(model.ScheduleNextSixHours)
	if len(six.Meetings) != 2 {
		t.Errorf("next six hours = %d meetings, want 2", len(six.Meetings))
	}
	day, _ := res.View(model.ScheduleNext24Hours)
	if len(day.Meetings) != 4 {
		t.Errorf("next 24 hours = %d meetings, want 4", len(day.Meetings))
	}
}

func TestBuildEmpty(t *testing.T) {
	res := newBuilder(t).Build(nil, now)
	if len(res.Views) != 1+len(DefaultWindows) {
		t.Fatalf("views = %d", len(res.Views))
	}
	for _, v := range res.Views {
		if v.Meetings == nil {
			t.Errorf("%s meetings is nil, want empty slice", v.Metadata.ScheduleType)
		}
	}
}

func TestBuildCustomWindows(t *testing.T) {
	loc, _ := time.LoadLocation(occurrence.DefaultZone)
	n := normalize.New(normalize.Options{Calculator: occurrence.NewCalculator(loc, 0)})
	b := NewBuilder(n, "", []Window{})

	res := b.Build(sampleRows(), now)
	if len(res.Views) != 1 {
		t.Errorf("views = %d, want full week only", len(res.Views))
	}
	if _, ok := res.View(model.ScheduleNext24Hours); ok {
		t.Error("unexpected next24Hours view")
	}
}

// panicky fails hard on rows named "Boom" and normalizes the rest.
type panicky struct {
	next RowNormalizer
}

func (p panicky) Row(cells []string, now time.Time) (model.Meeting, error) {
	if len(cells) > 2 && cells[2] == "Boom" {
		var m map[string]int
		m["boom"]++
	}
	return p.next.Row(cells, now)
}

func TestBuildRecoversRowPanic(t *testing.T) {
	loc, _ := time.LoadLocation(occurrence.DefaultZone)
	n := normalize.New(normalize.Options{Calculator: occurrence.NewCalculator(loc, occurrence.DefaultGraceWindow)})
	b := NewBuilder(panicky{next: n}, "SITE-1", nil)

	res := b.Build(rows(
		[]string{"Monday", "7:00pm", "Monday Night", "1", "", ""},
		[]string{"Tuesday", "7:00pm", "Boom", "2", "", ""},
		[]string{"Thursday", "7:00am", "Morning A", "3", "", ""},
	), now)

	full := res.FullWeek()
	if len(full.Meetings) != 2 || full.Meetings[0].Name != "Morning A" || full.Meetings[1].Name != "Monday Night" {
		t.Fatalf("meetings = %+v", full.Meetings)
	}

	malformed := res.Malformed()
	if len(malformed) != 1 || malformed[0].Row != 4 {
		t.Fatalf("malformed = %+v", malformed)
	}
	var rowErr *normalize.RowError
	if !errors.As(malformed[0].Err, &rowErr) {
		t.Errorf("skip error = %v, want *normalize.RowError", malformed[0].Err)
	}
}
