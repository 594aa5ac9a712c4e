// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/z5labs/klaim/transport"
	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CallOptions are the per invocation inputs of a route.
type CallOptions struct {
	page *int
	args map[string]any
	body any
}

// CallOption sets a value on [CallOptions].
type CallOption func(*CallOptions)

// Page requests the given page of a paginated route. It is ignored by
// routes without pagination.
func Page(offset int) CallOption {
	return func(co *CallOptions) {
		co.page = &offset
	}
}

// Args sets the values of url arguments.
func Args(args map[string]any) CallOption {
	return func(co *CallOptions) {
		for k, v := range args {
			co.args[k] = v
		}
	}
}

// Arg sets the value of a single url argument.
func Arg(name string, v any) CallOption {
	return func(co *CallOptions) {
		co.args[name] = v
	}
}

// Body sets the value sent as the JSON request body. It is ignored by
// GET routes.
func Body(v any) CallOption {
	return func(co *CallOptions) {
		co.body = v
	}
}

func (k *Klaim) leaf(key string) RouteFunc {
	return func(ctx context.Context, opts ...CallOption) (any, error) {
		route, ok := k.reg.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, key)
		}
		return k.call(ctx, route.Parent, route, opts...)
	}
}

func (k *Klaim) call(ctx context.Context, parent string, route *Element, opts ...CallOption) (data any, err error) {
	co := &CallOptions{
		args: make(map[string]any),
	}
	for _, opt := range opts {
		opt(co)
	}

	callID := uuid.NewString()
	routePath := parent + "." + route.Name

	spanCtx, span := k.tracer.Start(ctx, "klaim.call", trace.WithAttributes(
		attribute.String("klaim.route", routePath),
		attribute.String("klaim.call_id", callID),
	))
	defer span.End()

	log := k.log.With(
		slog.String("route", routePath),
		slog.String("call_id", callID),
	)

	api, ok := k.reg.Api(parent)
	defer func() {
		k.metrics.recordCall(spanCtx, routePath, err)
		if err == nil {
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(spanCtx, "call failed", slog.Any("error", err))
		k.handleError(spanCtx, route, api, err)
	}()

	if !ok || route.Kind != KindRoute || api.Kind != KindApi {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, routePath)
	}

	u, err := applyArguments(routePath, joinURL(api.URL, route.URL), route.arguments, co.args)
	if err != nil {
		return nil, err
	}

	if p, ok := route.Pagination(); ok && co.page != nil {
		u = paginate(u, p, *co.page)
	}

	req, err := buildRequest(u, api, route, co.body)
	if err != nil {
		return nil, err
	}

	before, after, _, _ := route.callbacks()
	apiBefore, apiAfter, _, _ := api.callbacks()
	if before == nil {
		before = apiBefore
	}
	if after == nil {
		after = apiAfter
	}

	if before != nil {
		out, err := runBefore(spanCtx, before, BeforeArgs{Route: route, Api: api, URL: u, Request: req})
		if err != nil {
			return nil, err
		}
		route, api, u, req = mergeBefore(out, route, api, u, req)
		req.URL = u

		k.reg.Update(api)
		k.reg.Update(route)
	}

	data, resp, err := k.fetchWithRetry(spanCtx, log, api, route, req)
	if err != nil {
		return nil, err
	}

	if route.Schema != nil {
		data, err = validate(spanCtx, route.Schema, data)
		if err != nil {
			return nil, &ValidationError{Route: routePath, Cause: err}
		}
	}

	if after != nil {
		out, err := runAfter(spanCtx, after, AfterArgs{Route: route, Api: api, Response: resp, Data: data})
		if err != nil {
			return nil, err
		}
		if out.Route != nil {
			route = out.Route
		}
		if out.Api != nil {
			api = out.Api
		}
		if out.Data != nil {
			data = out.Data
		}

		k.reg.Update(api)
		k.reg.Update(route)
	}

	hookErr := k.hooks.Run(spanCtx, api.Name+"."+route.Name)
	if hookErr != nil {
		log.WarnContext(spanCtx, "hook failed", slog.Any("error", hookErr))
	}

	return data, nil
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return base + "/" + path
}

func paginate(u string, p Pagination, page int) string {
	q := url.Values{}
	q.Set(p.PageParam, strconv.Itoa(page))
	q.Set(p.LimitParam, strconv.Itoa(p.Limit))

	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + q.Encode()
}

func buildRequest(u string, api, route *Element, body any) (*transport.Request, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	for k, v := range api.Headers {
		headers[k] = v
	}
	for k, v := range route.Headers {
		headers[k] = v
	}

	req := &transport.Request{
		URL:     u,
		Method:  route.Method,
		Headers: headers,
	}
	if body == nil || route.Method == http.MethodGet {
		return req, nil
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req.Body = b
	return req, nil
}

func mergeBefore(out BeforeArgs, route, api *Element, u string, req *transport.Request) (*Element, *Element, string, *transport.Request) {
	if out.Route != nil {
		route = out.Route
	}
	if out.Api != nil {
		api = out.Api
	}
	if out.URL != "" {
		u = out.URL
	}
	if out.Request != nil {
		req = out.Request
	}
	return route, api, u, req
}

func runBefore(ctx context.Context, f BeforeFunc, in BeforeArgs) (out BeforeArgs, err error) {
	defer try.Recover(&err)

	return f(ctx, in)
}

func runAfter(ctx context.Context, f AfterFunc, in AfterArgs) (out AfterArgs, err error) {
	defer try.Recover(&err)

	return f(ctx, in)
}

func validate(ctx context.Context, v Validator, data any) (out any, err error) {
	defer try.Recover(&err)

	return v.Validate(ctx, data)
}

// handleError notifies exactly one handler: the nearest one declared on
// the route or its ancestors, else the global one.
func (k *Klaim) handleError(ctx context.Context, route, api *Element, err error) {
	start := route
	if start == nil {
		start = api
	}

	var eh ErrorHandler
	k.reg.resolve(start, func(e *Element) bool {
		_, _, _, eh = e.callbacks()
		return eh != nil
	})
	if eh == nil {
		eh = k.onError
	}
	if eh == nil {
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				k.log.ErrorContext(ctx, "error handler panicked", slog.Any("panic", r))
			}
		}()
		eh.HandleError(ctx, err)
	}()
}
