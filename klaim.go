// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package klaim declares REST APIs as a tree of apis, groups and routes
// and turns every declared route into a callable.
//
// Cross cutting behaviour such as caching, retries, rate limiting,
// timeouts, pagination, middleware and response validation can be
// attached to any element and is inherited by the routes below it.
//
//	k := klaim.New()
//
//	_, err := k.Api("jsonPlaceholder", "https://jsonplaceholder.typicode.com", func(b *klaim.Builder) {
//	    b.Get("todo", "/todos/[id]").WithCache(time.Minute)
//	})
//	if err != nil {
//	    return err
//	}
//
//	todo, err := klaim.Call[Todo](ctx, k, "jsonPlaceholder.todo", klaim.Arg("id", 1))
package klaim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"github.com/z5labs/klaim/cache"
	"github.com/z5labs/klaim/ratelimit"
	"github.com/z5labs/klaim/transport"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Logger
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

// Options are configurable parameters of a [Klaim].
type Options struct {
	transport     transport.Transport
	log           *slog.Logger
	cache         *cache.Memory[any]
	limiter       *ratelimit.Window
	backoff       func() backoff.BackOff
	onError       ErrorHandler
	strictTimeout bool
	requestID     bool
}

// Option sets a value on [Options].
type Option interface {
	ApplyOption(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) ApplyOption(o *Options) {
	f(o)
}

// WithTransport replaces the default [transport.HTTP] transport.
func WithTransport(t transport.Transport) Option {
	return optionFunc(func(o *Options) {
		o.transport = t
	})
}

// WithLogger replaces the default OTel bridged logger.
func WithLogger(log *slog.Logger) Option {
	return optionFunc(func(o *Options) {
		o.log = log
	})
}

// CacheStore shares a response cache between multiple [Klaim]s.
func CacheStore(c *cache.Memory[any]) Option {
	return optionFunc(func(o *Options) {
		o.cache = c
	})
}

// RateLimiter shares a sliding window log between multiple [Klaim]s.
func RateLimiter(w *ratelimit.Window) Option {
	return optionFunc(func(o *Options) {
		o.limiter = w
	})
}

// Backoff sets the delay between attempts. A new [backoff.BackOff] is
// created for every call. The default retries immediately.
func Backoff(f func() backoff.BackOff) Option {
	return optionFunc(func(o *Options) {
		o.backoff = f
	})
}

// OnError registers the handler used for calls whose route and api
// do not define their own.
func OnError(eh ErrorHandler) Option {
	return optionFunc(func(o *Options) {
		o.onError = eh
	})
}

// StrictTimeout cancels the in flight request of an attempt once its
// timeout expires. By default the attempt is abandoned but left running.
func StrictTimeout() Option {
	return optionFunc(func(o *Options) {
		o.strictTimeout = true
	})
}

// WithRequestID sends a unique X-Request-Id header with every attempt.
func WithRequestID() Option {
	return optionFunc(func(o *Options) {
		o.requestID = true
	})
}

// Klaim owns a registry of declared elements along with the cache,
// rate limiter and hooks shared by every call made through it.
//
// Declarations are not safe for concurrent use. Calls are.
type Klaim struct {
	log           *slog.Logger
	tracer        trace.Tracer
	metrics       *metricsRecorder
	reg           *Registry
	hooks         *Hooks
	cache         *cache.Memory[any]
	limiter       *ratelimit.Window
	transport     transport.Transport
	backoff       func() backoff.BackOff
	onError       ErrorHandler
	strictTimeout bool
	requestID     bool
}

// New initializes a [Klaim].
func New(opts ...Option) *Klaim {
	o := &Options{
		log:     Logger("klaim"),
		backoff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
	for _, opt := range opts {
		opt.ApplyOption(o)
	}
	if o.transport == nil {
		o.transport = transport.NewHTTP()
	}
	if o.cache == nil {
		o.cache = cache.NewMemory[any]()
	}
	if o.limiter == nil {
		o.limiter = ratelimit.New()
	}

	metrics, err := newMetricsRecorder()
	if err != nil {
		o.log.Warn("falling back to no-op metrics", slog.Any("error", err))
		metrics = noopMetricsRecorder()
	}

	k := &Klaim{
		log:           o.log,
		tracer:        otel.Tracer("github.com/z5labs/klaim"),
		metrics:       metrics,
		hooks:         NewHooks(),
		cache:         o.cache,
		limiter:       o.limiter,
		transport:     o.transport,
		backoff:       o.backoff,
		onError:       o.onError,
		strictTimeout: o.strictTimeout,
		requestID:     o.requestID,
	}
	k.reg = NewRegistry(k.leaf)
	return k
}

// Registry
func (k *Klaim) Registry() *Registry {
	return k.reg
}

// Tree returns the callable reference tree.
func (k *Klaim) Tree() *Tree {
	return k.reg.Tree()
}

// Hooks
func (k *Klaim) Hooks() *Hooks {
	return k.hooks
}

// Cache returns the response cache.
func (k *Klaim) Cache() *cache.Memory[any] {
	return k.cache
}

// Call invokes the route at the dotted path.
func (k *Klaim) Call(ctx context.Context, path string, opts ...CallOption) (any, error) {
	n, ok := k.reg.Tree().Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return n.Call(ctx, opts...)
}

// Call invokes the route at the dotted path and converts the result
// into a T.
func Call[T any](ctx context.Context, k *Klaim, path string, opts ...CallOption) (T, error) {
	var v T

	data, err := k.Call(ctx, path, opts...)
	if err != nil {
		return v, err
	}
	if typed, ok := data.(T); ok {
		return typed, nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(b, &v)
	return v, err
}
