// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/z5labs/klaim/cache"
	"github.com/z5labs/klaim/timeout"
	"github.com/z5labs/klaim/transport"
	"github.com/z5labs/sdk-go/try"
)

type fetched struct {
	data any
	resp *transport.Response
}

// fetchWithRetry enforces the rate limit and then makes up to
// 1 + retries attempts. The response is nil when the data was served
// from the cache.
func (k *Klaim) fetchWithRetry(ctx context.Context, log *slog.Logger, api, route *Element, req *transport.Request) (any, *transport.Response, error) {
	routePath := k.reg.FullPath(route)

	if rate, key, ok := k.reg.EffectiveRate(route); ok {
		allowed, retryAfter := k.limiter.Allow(key, rate.Limit, rate.Duration)
		if !allowed {
			k.metrics.recordRateLimited(ctx, key)
			return nil, nil, &RateLimitError{Key: key, RetryAfter: retryAfter}
		}
	}

	retries, _ := k.reg.EffectiveRetry(route)

	_, _, onCall, _ := route.callbacks()
	if onCall == nil {
		_, _, onCall, _ = api.callbacks()
	}

	b := k.backoff()
	b.Reset()

	var (
		attempts int
		lastErr  error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			d := b.NextBackOff()
			if d == backoff.Stop {
				break
			}

			err := sleep(ctx, d)
			if err != nil {
				lastErr = err
				break
			}
		}

		if onCall != nil {
			runOnCall(ctx, log, onCall, attempt)
		}

		attempts++
		k.metrics.recordAttempt(ctx, routePath, attempt)

		f, err := k.attempt(ctx, route, routePath, req)
		if err == nil {
			return f.data, f.resp, nil
		}

		lastErr = err
		log.WarnContext(ctx, "attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("retries", retries),
			slog.Any("error", err),
		)
	}

	return nil, nil, &FetchError{
		URL:      req.URL,
		Attempts: attempts,
		Cause:    lastErr,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func runOnCall(ctx context.Context, log *slog.Logger, f CallFunc, attempt int) {
	var err error
	defer func() {
		if err != nil {
			log.WarnContext(ctx, "call callback failed", slog.Any("error", err))
		}
	}()
	defer try.Recover(&err)

	f(ctx, attempt)
}

// attempt performs a single, optionally cached and time bounded, request.
// The cache holds raw responses so every hit decodes a fresh value.
func (k *Klaim) attempt(ctx context.Context, route *Element, routePath string, req *transport.Request) (fetched, error) {
	do := func(ctx context.Context) (*transport.Response, error) {
		r := req
		if k.requestID {
			r = req.Clone()
			r.Headers["X-Request-Id"] = uuid.NewString()
		}
		return k.transport.Do(ctx, r)
	}

	if t, ok := k.reg.EffectiveTimeout(route); ok {
		inner := do
		do = func(ctx context.Context) (*transport.Response, error) {
			var opts []timeout.Option
			if k.strictTimeout {
				opts = append(opts, timeout.Cancel())
			}
			return timeout.Run(ctx, t.Duration, t.Message, inner, opts...)
		}
	}

	resp, err := k.cachedDo(ctx, route, routePath, req, do)
	if err != nil {
		return fetched{}, err
	}

	data, err := resp.Decode()
	if err != nil {
		return fetched{}, err
	}
	return fetched{data: data, resp: resp}, nil
}

func (k *Klaim) cachedDo(ctx context.Context, route *Element, routePath string, req *transport.Request, do func(context.Context) (*transport.Response, error)) (*transport.Response, error) {
	ttl, ok := k.reg.EffectiveCache(route)
	if !ok {
		return do(ctx)
	}

	key, err := cache.Key(req.URL, req)
	if err != nil {
		return nil, err
	}

	v, hit, err := k.cache.GetOr(key, ttl, func() (any, error) {
		resp, err := do(ctx)
		if err != nil {
			return nil, err
		}

		_, err = resp.Decode()
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	k.metrics.recordCacheLookup(ctx, routePath, hit)
	if err != nil {
		return nil, err
	}

	resp, ok := v.(*transport.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected cache entry %T for %s", v, key)
	}
	return resp.Clone(), nil
}
