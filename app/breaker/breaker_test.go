package breaker

import (
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	t.Parallel()

	b := New()

	if !b.Allow() {
		t.Fatal("expected a closed breaker to allow calls")
	}

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected closed below threshold, got %s", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open at threshold, got %s", b.State())
	}
	if b.Allow() {
		t.Fatal("expected an open breaker to block calls")
	}
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	t.Parallel()

	b := NewWith(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if b.Allow() {
		t.Fatal("expected open breaker to block before the reset timeout")
	}

	time.Sleep(80 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected a trial after the reset timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after trial success, got %s", b.State())
	}
	if b.FailureCount() != 0 {
		t.Fatalf("expected zero failures after success, got %d", b.FailureCount())
	}
}

func TestBreakerReopensOnTrialFailure(t *testing.T) {
	t.Parallel()

	b := NewWith(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(80 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected a trial after the reset timeout")
	}

	// Trial fails: the count is already past the threshold, so the breaker
	// trips again and restarts the cooldown.
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open after trial failure, got %s", b.State())
	}
	if b.Allow() {
		t.Fatal("expected the breaker to block right after a failed trial")
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	t.Parallel()

	b := New()

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Fatalf("expected interleaved success to reset the streak, got %s", b.State())
	}
}
