// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/klaim/internal/naming"
	"github.com/z5labs/sdk-go/ptr"
)

// OpenAPI describes the routes of the api at path as an OpenAPI 3 document.
// The api url is used as the single server and route urls as paths.
func (k *Klaim) OpenAPI(path, version string) (*openapi3.Spec, error) {
	api, ok := k.reg.Get(path)
	if !ok || api.Kind != KindApi {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	spec := &openapi3.Spec{
		Openapi: "3.0",
		Info: openapi3.Info{
			Title:   api.Name,
			Version: version,
		},
		Servers: []openapi3.Server{
			{URL: api.URL},
		},
	}

	for _, e := range k.reg.Elements() {
		if e.Kind != KindRoute {
			continue
		}
		owner, ok := k.reg.Api(e.Parent)
		if !ok || owner != api {
			continue
		}

		fullPath := k.reg.FullPath(e)
		op := openapi3.Operation{
			ID:         ptr.Ref(naming.Slugify(strings.ReplaceAll(fullPath, ".", " "), "_")),
			Tags:       tags(path, e.Parent),
			Parameters: parameters(api, e),
			Responses: openapi3.Responses{
				MapOfResponseOrRefValues: map[string]openapi3.ResponseOrRef{
					"200": {
						Response: &openapi3.Response{
							Description: "Successful response",
						},
					},
				},
			},
		}

		err := spec.AddOperation(e.Method, operationPath(e), op)
		if err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// tags names the groups between the api and the route.
func tags(apiPath, parent string) []string {
	rel := strings.TrimPrefix(strings.TrimPrefix(parent, apiPath), ".")
	if rel == "" {
		return nil
	}
	return []string{naming.Slugify(strings.ReplaceAll(rel, ".", " "), "-")}
}

func operationPath(route *Element) string {
	p := route.URL
	for _, a := range route.arguments {
		p = strings.Replace(p, a.placeholder, "{"+a.Name+"}", 1)
	}
	return "/" + p
}

func parameters(api, route *Element) []openapi3.ParameterOrRef {
	var params []openapi3.ParameterOrRef
	for _, a := range route.arguments {
		params = append(params, openapi3.ParameterOrRef{
			Parameter: &openapi3.Parameter{
				Name:     a.Name,
				In:       openapi3.ParameterInPath,
				Required: ptr.Ref(true),
				Schema: &openapi3.SchemaOrRef{
					Schema: &openapi3.Schema{
						Type: ptr.Ref(argumentSchemaType(a.Type)),
					},
				},
			},
		})
	}

	if p, ok := route.Pagination(); ok {
		for _, name := range []string{p.PageParam, p.LimitParam} {
			params = append(params, openapi3.ParameterOrRef{
				Parameter: &openapi3.Parameter{
					Name: name,
					In:   openapi3.ParameterInQuery,
					Schema: &openapi3.SchemaOrRef{
						Schema: &openapi3.Schema{
							Type: ptr.Ref(openapi3.SchemaTypeInteger),
						},
					},
				},
			})
		}
	}

	headers := make(map[string]struct{})
	for _, h := range []map[string]string{api.Headers, route.Headers} {
		for name := range h {
			headers[name] = struct{}{}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		params = append(params, openapi3.ParameterOrRef{
			Parameter: &openapi3.Parameter{
				Name:     name,
				In:       openapi3.ParameterInHeader,
				Required: ptr.Ref(true),
			},
		})
	}
	return params
}

func argumentSchemaType(t ArgumentType) openapi3.SchemaType {
	switch t {
	case ArgumentNumber:
		return openapi3.SchemaTypeNumber
	case ArgumentBoolean:
		return openapi3.SchemaTypeBoolean
	default:
		return openapi3.SchemaTypeString
	}
}
