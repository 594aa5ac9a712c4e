// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/z5labs/klaim/internal/naming"
)

// Builder declares the children of an api or group. It is only valid
// inside the callback it was passed to.
type Builder struct {
	k *Klaim
}

// Api declares a top level api and runs build to declare its children.
func (k *Klaim) Api(name, url string, build func(*Builder), opts ...ElementOption) (e *Element, err error) {
	defer recoverRegistration(&err)

	return k.declareApi(name, url, build, opts), nil
}

// Group declares a top level group, typically used to namespace apis.
func (k *Klaim) Group(name string, build func(*Builder)) (e *Element, err error) {
	defer recoverRegistration(&err)

	return k.declareGroup(name, build), nil
}

// Api declares an api nested in the current group.
func (b *Builder) Api(name, url string, build func(*Builder), opts ...ElementOption) *Element {
	return b.k.declareApi(name, url, build, opts)
}

// Group declares a group nested in the current api or group.
func (b *Builder) Group(name string, build func(*Builder)) *Element {
	return b.k.declareGroup(name, build)
}

// Get declares a GET route.
func (b *Builder) Get(name, url string, opts ...ElementOption) *Element {
	return b.k.declareRoute(http.MethodGet, name, url, opts)
}

// Post declares a POST route.
func (b *Builder) Post(name, url string, opts ...ElementOption) *Element {
	return b.k.declareRoute(http.MethodPost, name, url, opts)
}

// Put declares a PUT route.
func (b *Builder) Put(name, url string, opts ...ElementOption) *Element {
	return b.k.declareRoute(http.MethodPut, name, url, opts)
}

// Delete declares a DELETE route.
func (b *Builder) Delete(name, url string, opts ...ElementOption) *Element {
	return b.k.declareRoute(http.MethodDelete, name, url, opts)
}

// Patch declares a PATCH route.
func (b *Builder) Patch(name, url string, opts ...ElementOption) *Element {
	return b.k.declareRoute(http.MethodPatch, name, url, opts)
}

// Options declares an OPTIONS route.
func (b *Builder) Options(name, url string, opts ...ElementOption) *Element {
	return b.k.declareRoute(http.MethodOptions, name, url, opts)
}

func recoverRegistration(err *error) {
	r := recover()
	if r == nil {
		return
	}
	rerr, ok := r.(*RegistrationError)
	if !ok {
		panic(r)
	}
	*err = rerr
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func (k *Klaim) newElement(kind Kind, name, url string, opts []ElementOption) *Element {
	normalized := naming.CamelCase(name)
	if normalized != name {
		k.log.Warn(
			"element name was normalized",
			slog.String("kind", string(kind)),
			slog.String("name", name),
			slog.String("normalized", normalized),
		)
	}
	if normalized == "" || strings.Contains(normalized, ".") {
		panic(&RegistrationError{Path: name, Reason: "names must be non-empty and must not contain '.'"})
	}

	e := &Element{
		Kind:    kind,
		Name:    normalized,
		URL:     naming.CleanURL(url),
		Headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// within runs build with e as the current parent context.
func (k *Klaim) within(e *Element, build func(*Builder)) {
	must(k.reg.Push(k.reg.FullPath(e)))
	defer k.reg.Pop()

	if build != nil {
		build(&Builder{k: k})
	}
}

func (k *Klaim) declareApi(name, url string, build func(*Builder), opts []ElementOption) *Element {
	e := k.newElement(KindApi, name, url, opts)
	must(k.reg.Register(e))
	k.within(e, build)
	return e
}

func (k *Klaim) declareGroup(name string, build func(*Builder)) *Element {
	e := k.newElement(KindGroup, name, "", nil)
	must(k.reg.Register(e))
	k.within(e, build)
	return e
}

func (k *Klaim) declareRoute(method, name, url string, opts []ElementOption) *Element {
	e := k.newElement(KindRoute, name, url, opts)
	e.Method = method
	e.arguments = parseArguments(k.log, url)
	must(k.reg.RegisterRoute(e))
	return e
}
