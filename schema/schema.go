// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package schema provides response validators for declared routes.
//
// Every validator in this package has the method set
//
//	Validate(ctx context.Context, data any) (any, error)
//
// which receives the decoded response body and returns the value that
// continues down the call pipeline.
package schema

import (
	"context"
	"fmt"
	"strings"
)

// Func is an adapter to allow the use of ordinary functions as validators.
type Func func(context.Context, any) (any, error)

// Validate calls f.
func (f Func) Validate(ctx context.Context, data any) (any, error) {
	return f(ctx, data)
}

// FieldError describes a single rejected value.
type FieldError struct {
	Field   string
	Message string
}

// Error is returned by the validators in this package when data is rejected.
type Error struct {
	Fields []FieldError
}

// Error implements the [error] interface.
func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			msgs = append(msgs, f.Message)
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
