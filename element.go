// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"context"
	"sync"
	"time"

	"github.com/z5labs/klaim/timeout"
	"github.com/z5labs/klaim/transport"
)

// Kind identifies the role of an [Element] in the declaration tree.
type Kind string

const (
	KindApi   Kind = "api"
	KindGroup Kind = "group"
	KindRoute Kind = "route"
)

func (k Kind) container() bool {
	return k == KindApi || k == KindGroup
}

const (
	DefaultCacheTTL = 20 * time.Second
	DefaultRetries  = 2
)

// Rate is a sliding window request budget.
type Rate struct {
	Limit    int
	Duration time.Duration
}

// DefaultRate allows 5 requests every 10 seconds.
var DefaultRate = Rate{Limit: 5, Duration: 10 * time.Second}

// Timeout bounds the duration of a single attempt.
type Timeout struct {
	Duration time.Duration
	Message  string
}

// DefaultTimeout
var DefaultTimeout = Timeout{Duration: 5 * time.Second, Message: timeout.DefaultMessage}

// Pagination describes the query parameters appended to paginated routes.
type Pagination struct {
	Page       int
	PageParam  string
	Limit      int
	LimitParam string
}

// DefaultPagination
var DefaultPagination = Pagination{Page: 1, PageParam: "page", Limit: 10, LimitParam: "limit"}

// BeforeArgs is passed to, and returned from, a [BeforeFunc]. Any zero
// valued field of the returned value keeps the original value.
type BeforeArgs struct {
	Route   *Element
	Api     *Element
	URL     string
	Request *transport.Request
}

// BeforeFunc runs after the request is built and before any attempt.
type BeforeFunc func(context.Context, BeforeArgs) (BeforeArgs, error)

// AfterArgs is passed to, and returned from, an [AfterFunc]. Any zero
// valued field of the returned value keeps the original value.
type AfterArgs struct {
	Route    *Element
	Api      *Element
	Response *transport.Response
	Data     any
}

// AfterFunc runs after the response has been validated.
type AfterFunc func(context.Context, AfterArgs) (AfterArgs, error)

// CallFunc runs before every attempt. The attempt index starts at 0.
type CallFunc func(ctx context.Context, attempt int)

// ErrorHandler observes the terminal error of a call.
type ErrorHandler interface {
	HandleError(context.Context, error)
}

// ErrorHandlerFunc is a func type of the [ErrorHandler] interface.
type ErrorHandlerFunc func(context.Context, error)

// HandleError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, err error) {
	f(ctx, err)
}

// Validator checks, and may transform, a decoded response body.
type Validator interface {
	Validate(ctx context.Context, data any) (any, error)
}

// Element is a declared api, group or route.
type Element struct {
	Kind    Kind
	Name    string
	URL     string
	Method  string
	Headers map[string]string

	// Parent is the full path of the enclosing element.
	Parent string

	// Schema validates responses of a route.
	Schema Validator

	arguments []Argument
	reg       *Registry

	mu         sync.RWMutex
	cache      *time.Duration
	retry      *int
	rate       *Rate
	timeout    *Timeout
	pagination *Pagination
	before     BeforeFunc
	after      AfterFunc
	onCall     CallFunc
	onError    ErrorHandler
}

// ElementOption sets optional values on an [Element] during declaration.
type ElementOption func(*Element)

// WithHeaders merges h into the element headers.
func WithHeaders(h map[string]string) ElementOption {
	return func(e *Element) {
		for k, v := range h {
			e.Headers[k] = v
		}
	}
}

// WithSchema sets the validator applied to route responses.
func WithSchema(v Validator) ElementOption {
	return func(e *Element) {
		e.Schema = v
	}
}

// Arguments returns the url placeholders of a route in declaration order.
func (e *Element) Arguments() []Argument {
	return append([]Argument(nil), e.arguments...)
}

// ArgumentNames returns the names of [Element.Arguments].
func (e *Element) ArgumentNames() []string {
	names := make([]string, len(e.arguments))
	for i, a := range e.arguments {
		names[i] = a.Name
	}
	return names
}

// Cache reports the configured cache ttl.
func (e *Element) Cache() (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.cache == nil || *e.cache <= 0 {
		return 0, false
	}
	return *e.cache, true
}

// Retry reports the configured number of retries.
func (e *Element) Retry() (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.retry == nil || *e.retry <= 0 {
		return 0, false
	}
	return *e.retry, true
}

// Rate reports the configured rate limit.
func (e *Element) Rate() (Rate, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.rate == nil {
		return Rate{}, false
	}
	return *e.rate, true
}

// Timeout reports the configured per attempt timeout.
func (e *Element) Timeout() (Timeout, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.timeout == nil {
		return Timeout{}, false
	}
	return *e.timeout, true
}

// Pagination reports the configured pagination defaults.
func (e *Element) Pagination() (Pagination, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.pagination == nil {
		return Pagination{}, false
	}
	return *e.pagination, true
}

func (e *Element) callbacks() (BeforeFunc, AfterFunc, CallFunc, ErrorHandler) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.before, e.after, e.onCall, e.onError
}

// WithCache enables caching of decoded responses for ttl. A non-positive
// ttl selects [DefaultCacheTTL].
func (e *Element) WithCache(ttl time.Duration) *Element {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cache = &ttl
	return e
}

// WithRetry allows up to n additional attempts after a failed one.
func (e *Element) WithRetry(n int) *Element {
	n = max(n, 0)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.retry = &n
	return e
}

// WithRate limits the number of calls within a sliding window. Zero
// valued fields are taken from [DefaultRate].
func (e *Element) WithRate(r Rate) *Element {
	if r.Limit <= 0 {
		r.Limit = DefaultRate.Limit
	}
	if r.Duration <= 0 {
		r.Duration = DefaultRate.Duration
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rate = &r
	return e
}

// WithTimeout bounds every attempt. Zero valued fields are taken from
// [DefaultTimeout].
func (e *Element) WithTimeout(t Timeout) *Element {
	if t.Duration <= 0 {
		t.Duration = DefaultTimeout.Duration
	}
	if t.Message == "" {
		t.Message = DefaultTimeout.Message
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.timeout = &t
	return e
}

// WithPagination marks a route as paginated. Zero valued fields are
// taken from [DefaultPagination].
func (e *Element) WithPagination(p Pagination) *Element {
	if p.Page == 0 {
		p.Page = DefaultPagination.Page
	}
	if p.PageParam == "" {
		p.PageParam = DefaultPagination.PageParam
	}
	if p.Limit == 0 {
		p.Limit = DefaultPagination.Limit
	}
	if p.LimitParam == "" {
		p.LimitParam = DefaultPagination.LimitParam
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pagination = &p
	return e
}

// Before registers the middleware run ahead of the attempts. On an api
// or group it is also given to every declared route below it which has
// no middleware of its own.
func (e *Element) Before(f BeforeFunc) *Element {
	e.mu.Lock()
	e.before = f
	e.mu.Unlock()

	e.pushDown(func(el *Element) bool {
		if el.before != nil {
			return false
		}
		el.before = f
		return true
	})
	return e
}

// After registers the middleware run on the validated response. It is
// pushed down like [Element.Before].
func (e *Element) After(f AfterFunc) *Element {
	e.mu.Lock()
	e.after = f
	e.mu.Unlock()

	e.pushDown(func(el *Element) bool {
		if el.after != nil {
			return false
		}
		el.after = f
		return true
	})
	return e
}

// OnCall registers the callback run before every attempt. It is pushed
// down like [Element.Before].
func (e *Element) OnCall(f CallFunc) *Element {
	e.mu.Lock()
	e.onCall = f
	e.mu.Unlock()

	e.pushDown(func(el *Element) bool {
		if el.onCall != nil {
			return false
		}
		el.onCall = f
		return true
	})
	return e
}

// OnError registers the handler observing terminal call errors.
func (e *Element) OnError(h ErrorHandler) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.onError = h
	return e
}

// pushDown fills a value into the registered descendants of a container
// which do not define it. set reports whether it changed the element;
// the subtree of an element keeping its own value is left untouched.
func (e *Element) pushDown(set func(*Element) bool) {
	if !e.Kind.container() || e.reg == nil {
		return
	}

	var walk func(path string)
	walk = func(path string) {
		for _, child := range e.reg.Children(path) {
			child.mu.Lock()
			changed := set(child)
			child.mu.Unlock()

			if changed && child.Kind.container() {
				walk(e.reg.FullPath(child))
			}
		}
	}
	walk(e.reg.FullPath(e))
}
