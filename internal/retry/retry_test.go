package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fast = Policy{Attempts: 3, Delay: time.Millisecond, Multiplier: 2}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "flaky", fast, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	err := Do(context.Background(), "down", fast, func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Do error = %v, want wrapped sentinel", err)
	}
	if calls != fast.Attempts {
		t.Errorf("calls = %d, want %d", calls, fast.Attempts)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	sentinel := errors.New("not found")
	calls := 0
	err := Do(context.Background(), "missing", fast, func(ctx context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) || !IsPermanent(err) {
		t.Fatalf("Do error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesAttemptTimeout(t *testing.T) {
	p := Policy{Attempts: 2, Delay: time.Millisecond, Timeout: 10 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), "slow", p, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, "cancelled", Policy{Attempts: 5, Delay: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestFixed(t *testing.T) {
	p := Default.Fixed(time.Second)
	if p.Delay != time.Second || p.Multiplier != 1 || p.Attempts != Default.Attempts {
		t.Errorf("Fixed = %+v", p)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
