package resiliency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var errBoom = errors.New("boom")

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cfg := Config{MaxFailures: 3, ResetTimeout: time.Hour, SuccessesToClose: 1}
	b := New("test", cfg, testLogger(), nil)

	for i := 0; i < 3; i++ {
		if err := b.Execute(context.Background(), func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("expected the underlying error to pass through before opening, got %v", err)
		}
	}
	if b.State() != Open {
		t.Fatalf("expected breaker to be open after %d consecutive failures, got %s", cfg.MaxFailures, b.State())
	}

	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected a fast ErrOpen failure without calling op, got %v", err)
	}
}

func TestBreakerClosesAfterSuccessfulProbe(t *testing.T) {
	cfg := Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, SuccessesToClose: 1}
	b := New("test", cfg, testLogger(), nil)

	if err := b.Execute(context.Background(), func(context.Context) error { return errBoom }); err == nil {
		t.Fatal("expected the first failure to surface")
	}
	if b.State() != Open {
		t.Fatal("expected breaker open after a single failure with MaxFailures=1")
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected the half-open probe op to succeed, got %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected breaker closed after a successful half-open op, got %s", b.State())
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	cfg := Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, SuccessesToClose: 1}
	probeCalls := 0
	b := New("test", cfg, testLogger(), func(context.Context) error {
		probeCalls++
		return errBoom
	})

	b.Execute(context.Background(), func(context.Context) error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	opCalled := false
	err := b.Execute(context.Background(), func(context.Context) error {
		opCalled = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen when the probe itself fails, got %v", err)
	}
	if opCalled {
		t.Fatal("expected op to never run when the probe fails")
	}
	if probeCalls != 1 {
		t.Fatalf("expected exactly one probe attempt, got %d", probeCalls)
	}
	if b.State() != Open {
		t.Fatalf("expected breaker to stay open after a failed probe, got %s", b.State())
	}
}

func TestBreakerRequiresAllSuccessesToCloseBeforeClosing(t *testing.T) {
	cfg := Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, SuccessesToClose: 2}
	b := New("test", cfg, testLogger(), nil)

	b.Execute(context.Background(), func(context.Context) error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	b.Execute(context.Background(), func(context.Context) error { return nil })
	if b.State() != HalfOpen {
		t.Fatalf("expected breaker to stay half-open after only 1 of 2 required successes, got %s", b.State())
	}

	b.Execute(context.Background(), func(context.Context) error { return nil })
	if b.State() != Closed {
		t.Fatalf("expected breaker closed after the second half-open success, got %s", b.State())
	}
}
