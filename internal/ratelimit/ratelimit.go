package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks event counts per key within a sliding window. Keys are
// whatever the caller chooses: remote IPs for connection handshakes,
// user IDs for inbound envelopes.
type Limiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	max     int
	window  time.Duration
}

// New creates a Limiter allowing max events per window for each key.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string][]time.Time),
		max:     max,
		window:  window,
	}
}

// Allow reports whether key is under its limit and, if so, records the
// event.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	valid := l.entries[key][:0]
	for _, t := range l.entries[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.max {
		l.entries[key] = valid
		return false
	}

	l.entries[key] = append(valid, now)
	return true
}

// Forget drops all recorded events for key. Called when a connection
// goes away so departed users do not linger in the table.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
