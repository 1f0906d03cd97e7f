package fallback

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// FailureTrackerConfig holds configuration for the failure backoff tracker.
type FailureTrackerConfig struct {
	// InitialWindow is the backoff window after the first failure.
	// Default: 30 seconds.
	InitialWindow time.Duration

	// MaxWindow caps the doubling schedule.
	// Default: 15 minutes.
	MaxWindow time.Duration
}

// failureEntry is the transient per-endpoint backoff state. It lives only
// for the lifetime of the owning client instance and is never persisted.
type failureEntry struct {
	failures int
	until    time.Time
	schedule *backoff.ExponentialBackOff
}

// FailureTracker records per-endpoint failures and answers whether an
// endpoint is inside its backoff window. The window doubles per
// consecutive failure (30s, 60s, 120s, ...) up to MaxWindow, so a known-bad
// endpoint is skipped without a network call instead of being hammered.
//
// All methods are safe for concurrent use; each failure record is a single
// read-modify-write critical section so concurrent failures on the same
// endpoint never lose updates.
type FailureTracker struct {
	initial time.Duration
	max     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]*failureEntry
}

// NewFailureTracker creates a new failure tracker.
func NewFailureTracker(cfg FailureTrackerConfig) *FailureTracker {
	initial := cfg.InitialWindow
	if initial == 0 {
		initial = 30 * time.Second
	}
	max := cfg.MaxWindow
	if max == 0 {
		max = 15 * time.Minute
	}

	return &FailureTracker{
		initial: initial,
		max:     max,
		now:     time.Now,
		entries: make(map[uuid.UUID]*failureEntry),
	}
}

func (t *FailureTracker) newSchedule() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.initial
	bo.MaxInterval = t.max
	bo.Multiplier = 2
	bo.RandomizationFactor = 0 // deterministic windows
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// InBackoff reports whether the endpoint is inside its backoff window,
// and if so how long until it becomes eligible again.
func (t *FailureTracker) InBackoff(id uuid.UUID) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return false, 0
	}
	remaining := e.until.Sub(t.now())
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

// RecordFailure records one failed attempt and extends the backoff window.
// Returns the consecutive failure count and when the window expires.
// An entry whose window expired more than MaxWindow ago is treated as
// stale and the schedule starts over.
func (t *FailureTracker) RecordFailure(id uuid.UUID) (int, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.entries[id]
	if !ok || now.After(e.until.Add(t.max)) {
		e = &failureEntry{schedule: t.newSchedule()}
		t.entries[id] = e
	}

	e.failures++
	e.until = now.Add(e.schedule.NextBackOff())
	return e.failures, e.until
}

// Clear removes the endpoint's backoff entry after a success.
func (t *FailureTracker) Clear(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Failures returns the current consecutive failure count for the endpoint.
func (t *FailureTracker) Failures(id uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[id]; ok {
		return e.failures
	}
	return 0
}
