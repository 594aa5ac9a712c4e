// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ArgumentType constrains the values accepted for a url argument.
type ArgumentType string

const (
	ArgumentAny     ArgumentType = "any"
	ArgumentString  ArgumentType = "string"
	ArgumentNumber  ArgumentType = "number"
	ArgumentBoolean ArgumentType = "boolean"
)

// Argument is a placeholder declared in a route url. The accepted forms are
//
//	[name]
//	[name?]
//	[name:type]
//	[name:type=default]
//
// where type is one of any, string, number or boolean and default is
// a JSON value.
type Argument struct {
	Name     string
	Type     ArgumentType
	Default  any
	Required bool

	placeholder string
}

var placeholderPattern = regexp.MustCompile(`\[([^\]]+)\]`)

func parseArguments(log *slog.Logger, rawURL string) []Argument {
	matches := placeholderPattern.FindAllStringSubmatch(rawURL, -1)

	args := make([]Argument, 0, len(matches))
	for _, m := range matches {
		args = append(args, parseArgument(log, m[0], m[1]))
	}
	return args
}

func parseArgument(log *slog.Logger, placeholder, inner string) Argument {
	arg := Argument{
		Type:        ArgumentAny,
		Required:    true,
		placeholder: placeholder,
	}

	decl, def, hasDefault := strings.Cut(inner, "=")
	name, typ, hasType := strings.Cut(decl, ":")
	if strings.HasSuffix(name, "?") {
		name = strings.TrimSuffix(name, "?")
		arg.Required = false
	}
	arg.Name = name

	if hasType {
		arg.Type = ArgumentType(strings.ToLower(typ))
	}

	if hasDefault {
		var v any
		err := json.Unmarshal([]byte(def), &v)
		if err != nil {
			log.Warn(
				"argument default is not valid json, using the raw value",
				slog.String("argument", name),
				slog.String("default", def),
			)
			v = def
		}
		arg.Default = v
	}
	return arg
}

func (a Argument) check(route string, v any) error {
	s := fmt.Sprint(v)

	var ok bool
	switch a.Type {
	case ArgumentNumber:
		_, err := strconv.ParseFloat(s, 64)
		ok = err == nil
	case ArgumentBoolean:
		_, err := strconv.ParseBool(s)
		ok = err == nil
	case ArgumentString:
		_, err := strconv.ParseFloat(s, 64)
		ok = err != nil
	default:
		ok = true
	}
	if ok {
		return nil
	}
	return &ArgumentError{
		Route:    route,
		Argument: a.Name,
		Type:     a.Type,
		Value:    s,
	}
}

// applyArguments substitutes every placeholder of the route url with
// its value from args, falling back to the declared default.
func applyArguments(route string, rawURL string, declared []Argument, args map[string]any) (string, error) {
	out := rawURL
	for _, a := range declared {
		v, ok := args[a.Name]
		if !ok || v == nil {
			v, ok = a.Default, a.Default != nil
		}

		if !ok {
			if a.Required {
				return "", &ArgumentError{Route: route, Argument: a.Name}
			}
			out = removePlaceholder(out, a.placeholder)
			continue
		}

		err := a.check(route, v)
		if err != nil {
			return "", err
		}
		out = strings.Replace(out, a.placeholder, url.PathEscape(fmt.Sprint(v)), 1)
	}
	return out, nil
}

func removePlaceholder(s, placeholder string) string {
	if strings.Contains(s, "/"+placeholder) {
		return strings.Replace(s, "/"+placeholder, "", 1)
	}
	if strings.Contains(s, placeholder+"/") {
		return strings.Replace(s, placeholder+"/", "", 1)
	}
	return strings.Replace(s, placeholder, "", 1)
}
