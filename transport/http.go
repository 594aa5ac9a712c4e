// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPOptions configures [HTTP].
type HTTPOptions struct {
	client *http.Client
}

// HTTPOption sets a value on [HTTPOptions].
type HTTPOption func(*HTTPOptions)

// Client replaces the default [http.Client]. The given client is used
// as is, so it must carry its own instrumentation.
func Client(c *http.Client) HTTPOption {
	return func(ho *HTTPOptions) {
		ho.client = c
	}
}

// HTTP is a [Transport] backed by an [http.Client].
type HTTP struct {
	client *http.Client
}

// NewHTTP returns a [Transport] whose default client is instrumented
// with OpenTelemetry.
func NewHTTP(opts ...HTTPOption) *HTTP {
	ho := &HTTPOptions{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(ho)
	}

	return &HTTP{
		client: ho.client,
	}
}

// Do implements the [Transport] interface.
func (h *HTTP) Do(ctx context.Context, req *Request) (_ *Response, err error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	r, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		r.Header.Set(k, v)
	}

	resp, err := h.client.Do(r)
	if err != nil {
		return nil, err
	}
	defer try.Close(&err, resp.Body)

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        req.URL,
			Body:       b,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       b,
	}, nil
}
