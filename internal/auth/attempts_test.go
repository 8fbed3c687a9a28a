package auth

import (
	"sync"
	"testing"
	"time"
)

func newTestTracker(maxAttempts int, lockDuration time.Duration) (*AttemptTracker, *time.Time) {
	tracker := NewAttemptTracker(maxAttempts, lockDuration)
	current := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }
	return tracker, &current
}

func TestTrackerLocksAfterThreshold(t *testing.T) {
	tracker, _ := newTestTracker(3, 15*time.Minute)

	tracker.RecordFailure("user@example.com")
	tracker.RecordFailure("user@example.com")
	if tracker.IsLocked("user@example.com") {
		t.Fatal("locked before reaching the threshold")
	}

	tracker.RecordFailure("user@example.com")
	if !tracker.IsLocked("user@example.com") {
		t.Fatal("not locked after reaching the threshold")
	}

	if tracker.IsLocked("other@example.com") {
		t.Fatal("unrelated identity locked")
	}
}

func TestTrackerSuccessClearsEntry(t *testing.T) {
	tracker, _ := newTestTracker(3, 15*time.Minute)

	tracker.RecordFailure("user@example.com")
	tracker.RecordFailure("user@example.com")
	tracker.RecordSuccess("user@example.com")

	count, lockedUntil := tracker.State("user@example.com")
	if count != 0 || lockedUntil != nil {
		t.Fatalf("state after success = (%d, %v), want (0, nil)", count, lockedUntil)
	}
}

func TestTrackerLockExpires(t *testing.T) {
	tracker, current := newTestTracker(3, 15*time.Minute)

	for i := 0; i < 3; i++ {
		tracker.RecordFailure("user@example.com")
	}
	if !tracker.IsLocked("user@example.com") {
		t.Fatal("not locked")
	}

	*current = current.Add(16 * time.Minute)
	if tracker.IsLocked("user@example.com") {
		t.Fatal("lock survived past its expiry")
	}
}

func TestTrackerStaleCountRelocksImmediately(t *testing.T) {
	tracker, current := newTestTracker(3, 15*time.Minute)

	for i := 0; i < 3; i++ {
		tracker.RecordFailure("user@example.com")
	}

	// The count survives lock expiry; a single further failure re-locks.
	*current = current.Add(16 * time.Minute)
	if tracker.IsLocked("user@example.com") {
		t.Fatal("lock should have lapsed")
	}

	tracker.RecordFailure("user@example.com")
	if !tracker.IsLocked("user@example.com") {
		t.Fatal("stale count did not re-lock on the next failure")
	}
}

func TestTrackerState(t *testing.T) {
	tracker, current := newTestTracker(3, 15*time.Minute)

	tracker.RecordFailure("user@example.com")
	count, lockedUntil := tracker.State("user@example.com")
	if count != 1 || lockedUntil != nil {
		t.Fatalf("state = (%d, %v), want (1, nil)", count, lockedUntil)
	}

	tracker.RecordFailure("user@example.com")
	tracker.RecordFailure("user@example.com")
	count, lockedUntil = tracker.State("user@example.com")
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	if lockedUntil == nil || !lockedUntil.Equal(current.Add(15*time.Minute)) {
		t.Fatalf("lockedUntil = %v, want %v", lockedUntil, current.Add(15*time.Minute))
	}
}

func TestTrackerDefaults(t *testing.T) {
	tracker := NewAttemptTracker(0, 0)
	if tracker.maxAttempts != 5 {
		t.Fatalf("maxAttempts = %d, want 5", tracker.maxAttempts)
	}
	if tracker.lockDuration != 15*time.Minute {
		t.Fatalf("lockDuration = %v, want 15m", tracker.lockDuration)
	}
}

func TestTrackerConcurrentFailures(t *testing.T) {
	tracker := NewAttemptTracker(100, 15*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordFailure("user@example.com")
		}()
	}
	wg.Wait()

	count, _ := tracker.State("user@example.com")
	if count != 50 {
		t.Fatalf("count = %d, want 50", count)
	}
}
