// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const todoSchema = `{
	"type": "object",
	"required": ["id", "title"],
	"properties": {
		"id": {"type": "integer"},
		"title": {"type": "string", "minLength": 1}
	}
}`

func TestJSONSchema_Validate(t *testing.T) {
	s, err := CompileJSONSchema("todo.json", []byte(todoSchema))
	require.NoError(t, err)

	t.Run("will return the data unchanged", func(t *testing.T) {
		t.Run("if it conforms to the schema", func(t *testing.T) {
			data := map[string]any{"id": float64(1), "title": "write tests"}

			out, err := s.Validate(context.Background(), data)
			require.NoError(t, err)
			require.Equal(t, data, out)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a required property is missing", func(t *testing.T) {
			_, err := s.Validate(context.Background(), map[string]any{"id": float64(1)})

			var verr *Error
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Fields)
		})

		t.Run("if a property has the wrong type", func(t *testing.T) {
			_, err := s.Validate(context.Background(), map[string]any{"id": "one", "title": "x"})

			var verr *Error
			require.ErrorAs(t, err, &verr)
		})
	})
}

func TestCompileJSONSchema(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the document is not json", func(t *testing.T) {
			_, err := CompileJSONSchema("", []byte("{"))
			require.Error(t, err)
		})
	})

	t.Run("will panic", func(t *testing.T) {
		t.Run("if the document is not json and must compile", func(t *testing.T) {
			require.Panics(t, func() {
				MustCompileJSONSchema("", []byte("{"))
			})
		})
	})
}

type todo struct {
	ID    int    `json:"id" validate:"required,gt=0"`
	Title string `json:"title" validate:"required"`
}

func TestStructSchema_Validate(t *testing.T) {
	t.Run("will decode the data into the struct", func(t *testing.T) {
		out, err := Struct[todo]().Validate(context.Background(), map[string]any{
			"id":    float64(3),
			"title": "a",
		})
		require.NoError(t, err)
		require.Equal(t, todo{ID: 3, Title: "a"}, out)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a tag constraint is violated", func(t *testing.T) {
			_, err := Struct[todo]().Validate(context.Background(), map[string]any{
				"id": float64(3),
			})

			var verr *Error
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			require.Equal(t, "todo.Title", verr.Fields[0].Field)
		})

		t.Run("if the data can not be decoded", func(t *testing.T) {
			_, err := Struct[todo]().Validate(context.Background(), map[string]any{
				"id": "three",
			})

			var verr *Error
			require.ErrorAs(t, err, &verr)
		})
	})
}

func TestFunc_Validate(t *testing.T) {
	t.Run("will call the underlying func", func(t *testing.T) {
		fErr := errors.New("rejected")
		f := Func(func(ctx context.Context, data any) (any, error) {
			return nil, fErr
		})

		_, err := f.Validate(context.Background(), 1)
		require.ErrorIs(t, err, fErr)
	})
}
