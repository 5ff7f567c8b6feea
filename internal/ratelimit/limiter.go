// Package ratelimit provides sliding-window rate limiting keyed by
// caller identity.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Config configures rate limiting behavior.
type Config struct {
	// Limit is the number of requests allowed per window.
	Limit int `yaml:"limit"`
	// Window is the length of the sliding window.
	Window time.Duration `yaml:"window"`
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		Limit:   60,
		Window:  time.Minute,
		Enabled: true,
	}
}

// Window tracks request timestamps for one key. Counting exact
// timestamps rather than token buckets means the limit is never
// exceeded within any window-sized interval and the retry hint is
// exact, not an estimate.
type Window struct {
	mu     sync.Mutex
	limit  int
	length time.Duration
	times  []time.Time
}

// NewWindow creates a sliding window with the given config.
func NewWindow(config Config) *Window {
	if config.Limit <= 0 {
		config.Limit = DefaultConfig().Limit
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	return &Window{
		limit:  config.Limit,
		length: config.Window,
		times:  make([]time.Time, 0, config.Limit),
	}
}

// Allow records and admits the request if fewer than limit requests
// occurred in the trailing window. When denied, retryAfter is how long
// until the oldest counted request ages out.
func (w *Window) Allow() (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.expire(now)

	if len(w.times) < w.limit {
		w.times = append(w.times, now)
		return true, 0
	}

	retryAfter := w.times[0].Add(w.length).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// expire drops timestamps older than the window (lock held).
func (w *Window) expire(now time.Time) {
	cutoff := now.Add(-w.length)
	i := 0
	for i < len(w.times) && !w.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.times = append(w.times[:0], w.times[i:]...)
	}
}

// idle reports whether the window holds no live timestamps.
func (w *Window) idle(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expire(now)
	return len(w.times) == 0
}

// Limiter manages sliding windows for multiple keys.
type Limiter struct {
	mu      sync.RWMutex
	windows map[string]*Window
	config  Config
	maxKeys int
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config) *Limiter {
	return &Limiter{
		windows: make(map[string]*Window),
		config:  config,
		maxKeys: 10000,
	}
}

// Allow checks whether a request for key should be admitted. A
// disabled limiter admits everything.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if !l.config.Enabled {
		return true, 0
	}
	return l.getWindow(key).Allow()
}

// getWindow returns or creates the window for key.
func (l *Limiter) getWindow(key string) *Window {
	l.mu.RLock()
	window, exists := l.windows[key]
	l.mu.RUnlock()

	if exists {
		return window
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if window, exists = l.windows[key]; exists {
		return window
	}

	if len(l.windows) >= l.maxKeys {
		l.prune()
	}

	window = NewWindow(l.config)
	l.windows[key] = window
	return window
}

// prune removes windows with no live timestamps (lock held).
func (l *Limiter) prune() {
	now := time.Now()
	for key, window := range l.windows {
		if window.idle(now) {
			delete(l.windows, key)
		}
	}
}

// Reset clears the window for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// CompositeKey builds a rate limit key from parts.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, ":")
}
