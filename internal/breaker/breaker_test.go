package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_FullCycle(t *testing.T) {
	b := New(Config{
		Component:        "test",
		FailureThreshold: 3,
		Timeout:          500 * time.Millisecond,
		SuccessThreshold: 2,
	})

	fail := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := b.Guard(func() error { return fail })
		if !errors.Is(err, fail) {
			t.Fatalf("call %d: expected underlying failure, got %v", i, err)
		}
	}
	if b.CurrentState() != StateOpen {
		t.Fatalf("expected OPEN after %d failures, got %s", 3, b.CurrentState())
	}

	var co *CircuitOpen
	err := b.Guard(func() error { return nil })
	if !errors.As(err, &co) {
		t.Fatalf("expected CircuitOpen immediately after trip, got %v", err)
	}

	time.Sleep(550 * time.Millisecond)

	if err := b.Guard(func() error { return nil }); err != nil {
		t.Fatalf("expected first post-timeout call to succeed (half-open probe), got %v", err)
	}
	if b.CurrentState() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after one success, got %s", b.CurrentState())
	}

	if err := b.Guard(func() error { return nil }); err != nil {
		t.Fatalf("second success failed: %v", err)
	}
	if b.CurrentState() != StateClosed {
		t.Fatalf("expected CLOSED after success_threshold successes, got %s", b.CurrentState())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(Config{Component: "test", FailureThreshold: 1, Timeout: 10 * time.Millisecond, SuccessThreshold: 2})

	_ = b.Guard(func() error { return errors.New("x") })
	if b.CurrentState() != StateOpen {
		t.Fatal("expected OPEN")
	}
	time.Sleep(15 * time.Millisecond)
	_ = b.Guard(func() error { return errors.New("probe failed") })
	if b.CurrentState() != StateOpen {
		t.Fatalf("expected OPEN again after half-open probe failure, got %s", b.CurrentState())
	}
}

func TestBreaker_ExponentialBackoff(t *testing.T) {
	b := New(Config{
		Component:          "test",
		FailureThreshold:   1,
		Timeout:            10 * time.Millisecond,
		MaxTimeout:         30 * time.Millisecond,
		ExponentialBackoff: true,
	})

	_ = b.Guard(func() error { return errors.New("x") })
	time.Sleep(25 * time.Millisecond)                               // first trip already backed off to 20ms
	_ = b.Guard(func() error { return errors.New("probe failed") }) // currentTimeout 20ms -> 40ms, capped at 30ms

	var co *CircuitOpen
	err := b.Guard(func() error { return nil })
	if !errors.As(err, &co) {
		t.Fatalf("expected still open shortly after reopen, got %v", err)
	}
	if co.RetryAfter <= 0 {
		t.Fatal("expected positive retry-after")
	}
}

func TestBreaker_SuccessResetsFailureCountInClosed(t *testing.T) {
	b := New(Config{Component: "test", FailureThreshold: 2, Timeout: time.Second})
	_ = b.Guard(func() error { return errors.New("x") })
	_ = b.Guard(func() error { return nil }) // resets failures to 0
	_ = b.Guard(func() error { return errors.New("x") })
	if b.CurrentState() != StateClosed {
		t.Fatalf("single failure after reset should not trip breaker, got %s", b.CurrentState())
	}
}
