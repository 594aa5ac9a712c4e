// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cache provides the process local, expiring store used to
// memoize decoded response bodies.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Options configures a [Memory] cache.
type Options struct {
	now func() time.Time
}

// Option sets a value on [Options].
type Option func(*Options)

// WithClock overrides the time source used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	if e.expiresAt.IsZero() {
		return false
	}
	return now.After(e.expiresAt)
}

// Memory is a concurrency safe key/value store where every entry
// carries its own time-to-live.
type Memory[V any] struct {
	mu    sync.Mutex
	data  map[string]entry[V]
	group singleflight.Group
	now   func() time.Time
}

// NewMemory
func NewMemory[V any](opts ...Option) *Memory[V] {
	o := &Options{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Memory[V]{
		data: make(map[string]entry[V]),
		now:  o.now,
	}
}

// Set stores v under k. A non-positive ttl never expires.
func (m *Memory[V]) Set(k string, v V, ttl time.Duration) {
	e := entry[V]{value: v}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[k] = e
}

// Get returns the live value stored under k. Expired entries are
// evicted on access.
func (m *Memory[V]) Get(k string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[k]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(m.now()) {
		delete(m.data, k)

		var zero V
		return zero, false
	}
	return e.value, true
}

// Has
func (m *Memory[V]) Has(k string) bool {
	_, ok := m.Get(k)
	return ok
}

// Delete
func (m *Memory[V]) Delete(k string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, k)
}

// Clear removes every entry.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.data)
}

// Len reports the number of stored entries, including any expired
// entries which have not been accessed since expiring.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.data)
}

// GetOr returns the live value stored under k or calls f to produce it.
// Concurrent misses for the same key share a single call to f. The
// reported bool is true when the value came from the cache.
func (m *Memory[V]) GetOr(k string, ttl time.Duration, f func() (V, error)) (V, bool, error) {
	v, ok := m.Get(k)
	if ok {
		return v, true, nil
	}

	res, err, _ := m.group.Do(k, func() (any, error) {
		v, err := f()
		if err != nil {
			return v, err
		}

		m.Set(k, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	v, _ = res.(V)
	return v, false, nil
}
