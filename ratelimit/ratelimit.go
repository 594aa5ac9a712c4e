// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package ratelimit implements a process local sliding window log.
//
// Each key keeps the timestamps of its admitted requests. A request is
// admitted only while fewer than limit timestamps fall inside the window
// ending now.
package ratelimit

import (
	"sync"
	"time"
)

// Options configures a [Window].
type Options struct {
	now func() time.Time
}

// Option sets a value on [Options].
type Option func(*Options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

// Window tracks admitted request timestamps per key.
type Window struct {
	mu   sync.Mutex
	logs map[string][]time.Time
	now  func() time.Time
}

// New
func New(opts ...Option) *Window {
	o := &Options{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Window{
		logs: make(map[string][]time.Time),
		now:  o.now,
	}
}

// Allow records a request for key if the window has room for it. When
// the request is rejected the returned duration reports how long until
// the oldest timestamp in the window expires.
//
// The check and the append happen under a single lock so concurrent
// callers can never over admit.
func (w *Window) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	valid := w.logs[key][:0]
	for _, ts := range w.logs[key] {
		if now.Sub(ts) < window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= limit {
		w.logs[key] = valid
		if len(valid) == 0 {
			return false, window
		}
		return false, max(0, valid[0].Add(window).Sub(now))
	}

	w.logs[key] = append(valid, now)
	return true, 0
}

// Reset forgets every timestamp recorded for key.
func (w *Window) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.logs, key)
}
