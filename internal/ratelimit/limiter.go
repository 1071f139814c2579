// Package ratelimit implements per-client fixed-window admission control.
//
// Each client key gets a counter and the instant its window opened. A request
// arriving more than Window after that instant opens a new window at the
// request time, so bursts straddling a boundary can exceed Max.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 5
)

type entry struct {
	requestCount int
	windowStart  time.Time
}

// Decision is the outcome of Admit. RetryAfterSeconds is only set on denial.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string]*entry
}

func New(window time.Duration, max int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Limiter{window: window, max: max, entries: make(map[string]*entry)}
}

func (l *Limiter) Window() time.Duration { return l.window }
func (l *Limiter) Max() int              { return l.max }

// Admit counts one request for key at now and classifies it.
// Denied requests still increment the counter until the window resets.
func (l *Limiter) Admit(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{windowStart: now}
		l.entries[key] = e
	}
	if now.Sub(e.windowStart) > l.window {
		e.requestCount = 0
		e.windowStart = now
	}
	e.requestCount++

	if e.requestCount > l.max {
		remaining := e.windowStart.Add(l.window).Sub(now)
		return Decision{RetryAfterSeconds: int(math.Ceil(remaining.Seconds()))}
	}
	return Decision{Allowed: true}
}

// Len returns the number of tracked client keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep drops entries whose window has already expired at now and returns how
// many were removed. Admit never calls it; the map only shrinks when an
// operator schedules sweeps.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, e := range l.entries {
		if now.Sub(e.windowStart) > l.window {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}
