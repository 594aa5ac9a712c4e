// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package transport defines the request execution contract used by the
// call pipeline and provides a net/http based implementation of it.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request is the fully resolved description of a single attempt.
// Its JSON form, minus the url, is part of the cache key.
type Request struct {
	URL     string            `json:"-"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}

	var body json.RawMessage
	if r.Body != nil {
		body = append(json.RawMessage(nil), r.Body...)
	}

	return &Request{
		URL:     r.URL,
		Method:  r.Method,
		Headers: headers,
		Body:    body,
	}
}

// Response is the raw result of an attempt.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	headers := make(map[string][]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = append([]string(nil), v...)
	}

	var body []byte
	if r.Body != nil {
		body = append([]byte(nil), r.Body...)
	}

	return &Response{
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       body,
	}
}

// Decode unmarshals the JSON body. An empty body decodes to an empty object.
func (r *Response) Decode() (any, error) {
	if len(r.Body) == 0 {
		return map[string]any{}, nil
	}

	var v any
	err := json.Unmarshal(r.Body, &v)
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}
	return v, nil
}

// Transport executes a [Request].
type Transport interface {
	Do(context.Context, *Request) (*Response, error)
}

// Func is an adapter to allow the use of ordinary functions as a [Transport].
type Func func(context.Context, *Request) (*Response, error)

// Do implements the [Transport] interface.
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// StatusError is returned for any response with a status code of 400 or more.
type StatusError struct {
	StatusCode int
	URL        string
	Body       []byte
}

// Error implements the [error] interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// DecodeError is returned when a response body is not valid JSON.
type DecodeError struct {
	Cause error
}

// Error implements the [error] interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response body: %s", e.Cause)
}

// Unwrap
func (e *DecodeError) Unwrap() error {
	return e.Cause
}
