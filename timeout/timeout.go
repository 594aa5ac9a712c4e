// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package timeout races an operation against a deadline.
package timeout

import (
	"context"
	"time"
)

// DefaultMessage is reported when no message is configured.
const DefaultMessage = "Request timed out"

// Error is returned when an operation does not complete before its deadline.
type Error struct {
	Message  string
	Duration time.Duration
}

// Error implements the [error] interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return DefaultMessage
	}
	return e.Message
}

// Options configures [Run].
type Options struct {
	cancel bool
}

// Option sets a value on [Options].
type Option func(*Options)

// Cancel makes [Run] cancel the context passed to the operation once the
// deadline passes. Without it the deadline is advisory: the caller stops
// waiting but the operation keeps running to completion in the background.
func Cancel() Option {
	return func(o *Options) {
		o.cancel = true
	}
}

type result[T any] struct {
	value T
	err   error
}

// Run calls f and returns its result, or an [*Error] carrying msg if f
// has not returned after d. A cancelled ctx is reported as ctx.Err().
func Run[T any](ctx context.Context, d time.Duration, msg string, f func(context.Context) (T, error), opts ...Option) (T, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}

	runCtx := ctx
	if o.cancel {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	resCh := make(chan result[T], 1)
	go func() {
		v, err := f(runCtx)
		resCh <- result[T]{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resCh:
		return res.value, res.err
	case <-timer.C:
		return zero, &Error{Message: msg, Duration: d}
	}
}
