// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/z5labs/klaim/timeout"
)

// ErrInvalidPath is returned when a path does not resolve to a route
// owned by an api.
var ErrInvalidPath = errors.New("invalid path")

// RegistrationError is raised while declaring elements.
type RegistrationError struct {
	Path   string
	Reason string
}

// Error implements the [error] interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register %s: %s", e.Path, e.Reason)
}

// ArgumentError is returned before any attempt is made when a route
// argument is missing or malformed.
type ArgumentError struct {
	Route    string
	Argument string
	Type     ArgumentType
	Value    string
}

// Error implements the [error] interface.
func (e *ArgumentError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("Argument %s is missing", e.Argument)
	}
	return fmt.Sprintf("Invalid type: %s for argument: %s, given: %s", e.Type, e.Argument, e.Value)
}

// RateLimitError is returned when the sliding window for a route is full.
type RateLimitError struct {
	Key        string
	RetryAfter time.Duration
}

// Error implements the [error] interface.
func (e *RateLimitError) Error() string {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	return fmt.Sprintf("Rate limit exceeded for %s. Try again in %d seconds", e.Key, secs)
}

// TimeoutError is returned when a single attempt exceeds its deadline.
type TimeoutError = timeout.Error

// FetchError is returned once every attempt allowed by the retry budget
// has failed. It wraps the error of the final attempt.
type FetchError struct {
	URL      string
	Attempts int
	Cause    error
}

// Error implements the [error] interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to fetch %s after %d attempts: %s", e.URL, e.Attempts, e.Cause)
}

// Unwrap
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// ValidationError is returned when the route schema rejects a response.
type ValidationError struct {
	Route string
	Cause error
}

// Error implements the [error] interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("response of %s failed validation: %s", e.Route, e.Cause)
}

// Unwrap
func (e *ValidationError) Unwrap() error {
	return e.Cause
}
