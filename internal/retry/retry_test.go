package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps test runtimes negligible.
func fastPolicy(retryable func(error) bool) *Policy {
	return &Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		Retryable:       retryable,
	}
}

func Test_Do_SucceedsFirstTry(t *testing.T) {
	t.Parallel()
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func Test_Do_RetriesTransientUntilSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func Test_Do_ExhaustsAttempts(t *testing.T) {
	t.Parallel()
	calls := 0
	wantErr := errors.New("still down")
	err := fastPolicy(nil).Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly MaxAttempts (3)", calls)
	}
}

func Test_Do_PermanentErrorNotRetried(t *testing.T) {
	t.Parallel()
	calls := 0
	permanent := errors.New("malformed request")
	p := fastPolicy(func(err error) bool { return !errors.Is(err, permanent) })
	err := p.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Do = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a permanent error", calls)
	}
}

func Test_Do_ContextCancellationStopsRetries(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := &Policy{MaxAttempts: 10, InitialInterval: 50 * time.Millisecond}
	err := p.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("want error after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 — no retries after ctx cancel", calls)
	}
}

func Test_DoValue_ReturnsResult(t *testing.T) {
	t.Parallel()
	calls := 0
	got, err := DoValue(context.Background(), fastPolicy(nil), func() ([]float32, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("transient")
		}
		return []float32{1, 0}, nil
	})
	if err != nil {
		t.Fatalf("DoValue: %v", err)
	}
	if len(got) != 2 || got[0] != 1 {
		t.Errorf("got = %v, want [1 0]", got)
	}
}
