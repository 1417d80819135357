package authapi

import (
	"sync"
	"time"
)

// failureThrottle is a sliding-window counter over login failures, keyed by
// an opaque string (client IP or normalized email). Entries are pruned on
// access, so memory stays proportional to recent failure activity.
type failureThrottle struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   map[string][]time.Time
}

func newFailureThrottle(max int, window time.Duration) *failureThrottle {
	return &failureThrottle{
		max:    max,
		window: window,
		hits:   map[string][]time.Time{},
	}
}

// Blocked reports whether key has hit the failure ceiling inside the window,
// and if so, how long until the oldest counted failure ages out.
func (t *failureThrottle) Blocked(key string, now time.Time) (bool, time.Duration) {
	if t == nil || t.max <= 0 || key == "" {
		return false, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.prune(key, now)
	if len(recent) < t.max {
		return false, 0
	}
	return true, recent[0].Add(t.window).Sub(now)
}

// RecordFailure notes a failed attempt for key.
func (t *failureThrottle) RecordFailure(key string, now time.Time) {
	if t == nil || t.max <= 0 || key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hits[key] = append(t.prune(key, now), now)
}

// Reset clears failures for key after a successful login.
func (t *failureThrottle) Reset(key string) {
	if t == nil || key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hits, key)
}

// prune drops aged-out entries for key under t.mu and returns the survivors.
func (t *failureThrottle) prune(key string, now time.Time) []time.Time {
	cut := now.Add(-t.window)
	old := t.hits[key]
	recent := old[:0]
	for _, at := range old {
		if at.After(cut) {
			recent = append(recent, at)
		}
	}
	if len(recent) == 0 {
		delete(t.hits, key)
		return nil
	}
	t.hits[key] = recent
	return recent
}
