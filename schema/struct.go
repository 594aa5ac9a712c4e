// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// StructSchema decodes data into T and validates it using the
// `validate` struct tags understood by go-playground/validator.
type StructSchema[T any] struct{}

// Struct returns a validator which converts the response into a T.
func Struct[T any]() StructSchema[T] {
	return StructSchema[T]{}
}

// Validate returns the decoded T when every tag constraint holds.
func (StructSchema[T]) Validate(ctx context.Context, data any) (any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, &Error{Fields: []FieldError{{Message: err.Error()}}}
	}

	var v T
	err = json.Unmarshal(b, &v)
	if err != nil {
		return nil, &Error{Fields: []FieldError{{Message: err.Error()}}}
	}

	err = structValidator().StructCtx(ctx, v)
	if err == nil {
		return v, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, &Error{Fields: []FieldError{{Message: err.Error()}}}
	}

	result := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		result.Fields = append(result.Fields, FieldError{
			Field:   fe.Namespace(),
			Message: fe.Error(),
		})
	}
	return nil, result
}
