// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// JSONSchema validates data against a compiled JSON Schema document.
type JSONSchema struct {
	schema *jsonschema.Schema
}

// CompileJSONSchema compiles doc. The id is used as the resource url
// and defaults to "schema.json".
func CompileJSONSchema(id string, doc []byte) (*JSONSchema, error) {
	if id == "" {
		id = "schema.json"
	}

	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("invalid schema json: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()

	err = c.AddResource(id, v)
	if err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	s, err := c.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &JSONSchema{schema: s}, nil
}

// MustCompileJSONSchema is like [CompileJSONSchema] but panics on error.
func MustCompileJSONSchema(id string, doc []byte) *JSONSchema {
	s, err := CompileJSONSchema(id, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate returns data unchanged if it conforms to the schema.
func (s *JSONSchema) Validate(ctx context.Context, data any) (any, error) {
	err := s.schema.Validate(data)
	if err == nil {
		return data, nil
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, &Error{Fields: []FieldError{{Message: err.Error()}}}
	}

	var result Error
	collect(verr, &result)
	if len(result.Fields) == 0 {
		result.Fields = append(result.Fields, FieldError{Message: verr.Error()})
	}
	return nil, &result
}

func collect(verr *jsonschema.ValidationError, result *Error) {
	if len(verr.Causes) == 0 {
		result.Fields = append(result.Fields, FieldError{
			Field:   strings.Join(verr.InstanceLocation, "."),
			Message: verr.Error(),
		})
		return
	}
	for _, cause := range verr.Causes {
		collect(cause, result)
	}
}
