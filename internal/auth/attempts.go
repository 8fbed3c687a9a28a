package auth

import (
	"sync"
	"time"
)

const trackerMaxEntries = 5000

// AttemptTracker counts consecutive failed logins per identity and arms a
// timed lockout once the configured threshold is reached. State is
// process-local: it is not persisted across restarts and not shared
// between replicas.
type AttemptTracker struct {
	mu           sync.Mutex
	maxAttempts  int
	lockDuration time.Duration
	byEmail      map[string]*loginAttempt
	now          func() time.Time
}

type loginAttempt struct {
	count       int
	lastAttempt time.Time
	lockedUntil *time.Time
}

func NewAttemptTracker(maxAttempts int, lockDuration time.Duration) *AttemptTracker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockDuration <= 0 {
		lockDuration = 15 * time.Minute
	}

	return &AttemptTracker{
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		byEmail:      make(map[string]*loginAttempt),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RecordFailure increments the failure count and arms the lock once the
// count reaches the threshold. A lapsed lock does not reset the count:
// the next failure after expiry re-locks immediately. Only RecordSuccess
// clears an entry.
func (t *AttemptTracker) RecordFailure(email string) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	attempt := t.byEmail[email]
	if attempt == nil {
		attempt = &loginAttempt{}
		t.byEmail[email] = attempt
	}

	attempt.count++
	attempt.lastAttempt = now
	if attempt.count >= t.maxAttempts {
		until := now.Add(t.lockDuration)
		attempt.lockedUntil = &until
	}

	if len(t.byEmail) > trackerMaxEntries {
		t.sweep(now)
	}
}

func (t *AttemptTracker) RecordSuccess(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byEmail, email)
}

// IsLocked reports whether a lock exists and is strictly in the future.
func (t *AttemptTracker) IsLocked(email string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	attempt := t.byEmail[email]
	return attempt != nil && attempt.lockedUntil != nil && now.Before(*attempt.lockedUntil)
}

// State returns the current failure count and lock expiry for an identity,
// for callers that mirror the tracker into durable storage.
func (t *AttemptTracker) State(email string) (int, *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempt := t.byEmail[email]
	if attempt == nil {
		return 0, nil
	}
	if attempt.lockedUntil == nil {
		return attempt.count, nil
	}

	until := *attempt.lockedUntil
	return attempt.count, &until
}

// sweep drops idle, unlocked entries once the map grows past its cap.
// Called with mu held.
func (t *AttemptTracker) sweep(now time.Time) {
	idleBefore := now.Add(-t.lockDuration)
	for email, attempt := range t.byEmail {
		locked := attempt.lockedUntil != nil && now.Before(*attempt.lockedUntil)
		if !locked && attempt.lastAttempt.Before(idleBefore) {
			delete(t.byEmail, email)
		}
	}
}
