// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"context"
	"sync"

	"github.com/z5labs/sdk-go/try"
)

// HookFunc is notified after a successful call.
type HookFunc func(context.Context)

// Hooks maps a name to at most one listener.
type Hooks struct {
	mu        sync.RWMutex
	listeners map[string]HookFunc
}

// NewHooks
func NewHooks() *Hooks {
	return &Hooks{
		listeners: make(map[string]HookFunc),
	}
}

// Subscribe sets the listener for name, replacing any previous one.
// Routes publish under "<apiName>.<routeName>".
func (h *Hooks) Subscribe(name string, f HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.listeners[name] = f
}

// Unsubscribe
func (h *Hooks) Unsubscribe(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.listeners, name)
}

// Run notifies the listener for name. It is a no-op when there is none.
// A panicking listener is reported as an error.
func (h *Hooks) Run(ctx context.Context, name string) (err error) {
	h.mu.RLock()
	f, ok := h.listeners[name]
	h.mu.RUnlock()

	if !ok {
		return nil
	}

	defer try.Recover(&err)
	f(ctx)
	return nil
}
