package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nextmeeting/internal/model"
	"nextmeeting/internal/publish"
	"nextmeeting/internal/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	view := model.Schedule{
		Metadata: model.ScheduleMetadata{
			ScheduleType: model.ScheduleFullWeek,
			GeneratedAt:  model.NewTimestamp(time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)),
		},
		Meetings: []model.Meeting{{Name: "Monday Night"}},
	}
	data, err := publish.EncodeView(view)
	if err != nil {
		t.Fatal(err)
	}
	s.Put(ctx, publish.ScheduleKey("site-1", model.ScheduleFullWeek), data, store.Attrs{})
	s.Put(ctx, publish.PageKey("site-1"), []byte("<html>page</html>"), store.Attrs{})
	s.Put(ctx, publish.CalendarKey("site-1"), []byte("BEGIN:VCALENDAR"), store.Attrs{})

	mux := http.NewServeMux()
	New(s, "site-1").RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	// Ask for identity so the transport does not decompress transparently.
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIndex(t *testing.T) {
	srv := newServer(t)
	resp := get(t, srv, "/")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("GET / = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") {
		t.Errorf("Cache-Control = %q", resp.Header.Get("Cache-Control"))
	}
	if get(t, srv, "/other").StatusCode != http.StatusNotFound {
		t.Error("unknown path did not 404")
	}
}

func TestSchedule(t *testing.T) {
	srv := newServer(t)
	resp := get(t, srv, "/schedule/fullWeek.json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view model.Schedule
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if view.Metadata.ScheduleType != model.ScheduleFullWeek || len(view.Meetings) != 1 {
		t.Errorf("view = %+v", view)
	}

	if get(t, srv, "/schedule/nextSixHours.json").StatusCode != http.StatusNotFound {
		t.Error("missing view did not 404")
	}
	if get(t, srv, "/schedule/fullWeek").StatusCode != http.StatusNotFound {
		t.Error("view without .json did not 404")
	}
}

func TestScheduleGzip(t *testing.T) {
	srv := newServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/schedule/fullWeek.json", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	// The transport asked for gzip and decompressed the body itself.
	var view model.Schedule
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil || len(view.Meetings) != 1 {
		t.Errorf("decoding gzip response: %v", err)
	}
}

func TestCalendarAndHealth(t *testing.T) {
	srv := newServer(t)
	if resp := get(t, srv, "/calendar.ics"); resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar") {
		t.Errorf("GET /calendar.ics = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if resp := get(t, srv, "/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d", resp.StatusCode)
	}
}
