package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Name: "test", MaxFailures: 2, Timeout: 50 * time.Millisecond, HalfOpenMax: 1})

	boom := errors.New("boom")
	failing := func(ctx context.Context) error { return boom }

	_ = b.Execute(context.Background(), failing)
	_ = b.Execute(context.Background(), failing)

	if b.State() != StateOpen {
		t.Fatalf("State() = %v, want StateOpen after consecutive failures", b.State())
	}

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() on open breaker = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b := New(Config{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMax: 1})

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("fail") })
	if b.State() != StateOpen {
		t.Fatalf("State() = %v, want StateOpen", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Execute() after cooldown = %v, want nil", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("State() = %v, want StateClosed after successful probe", b.State())
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() = %v, want nil", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig()
	cfg.InitialInterval = time.Millisecond

	permanentErr := errors.New("4xx from webhook endpoint")
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return Permanent(permanentErr)
	})

	if !errors.Is(err, permanentErr) {
		t.Fatalf("Retry() = %v, want permanentErr", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on permanent error)", attempts)
	}
}
