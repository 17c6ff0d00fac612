package cache

import (
	"context"
	"testing"
	"time"

	"nextmeeting/internal/sheet"
)

type countingReader struct {
	calls int
}

func (r *countingReader) Fetch(ctx context.Context, sheetID string) (*sheet.Grid, error) {
	r.calls++
	return sheet.NewGrid("Schedule", [][]string{{"Day", "Start Time"}, {"Monday", "7:00pm"}}), nil
}

func TestReaderCachesGrids(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	next := &countingReader{}
	r := NewReader(next, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g, err := r.Fetch(ctx, "sheet/1")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if v, ok := g.Cell(2, 1); !ok || v != "Monday" || g.Title != "Schedule" {
			t.Errorf("grid = %+v", g)
		}
	}
	if next.calls != 1 {
		t.Errorf("upstream fetches = %d, want 1", next.calls)
	}

	if err := c.Invalidate("sheet/1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	r.Fetch(ctx, "sheet/1")
	if next.calls != 2 {
		t.Errorf("upstream fetches after invalidate = %d, want 2", next.calls)
	}
}

func TestCacheExpires(t *testing.T) {
	c, _ := New(t.TempDir(), time.Minute)
	base := time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("abc", sheet.NewGrid("T", [][]string{{"x"}}))
	if _, ok := c.Get("abc"); !ok {
		t.Fatal("fresh entry missing")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("abc"); ok {
		t.Error("expired entry returned")
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("missing entry returned")
	}
}
