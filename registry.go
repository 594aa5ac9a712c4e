// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"strings"
	"sync"
	"time"
)

// Registry stores declared elements under their full dotted paths and
// mirrors them into a [Tree].
type Registry struct {
	tree *Tree
	leaf func(key string) RouteFunc

	mu       sync.RWMutex
	elements map[string]*Element
	order    []string
	stack    []string
}

// NewRegistry returns an empty registry. The leaf func produces the
// callable installed in the tree for the route stored under key.
func NewRegistry(leaf func(key string) RouteFunc) *Registry {
	return &Registry{
		tree:     newTree(),
		leaf:     leaf,
		elements: make(map[string]*Element),
	}
}

// Tree returns the callable projection of the registry.
func (r *Registry) Tree() *Tree {
	return r.tree
}

// Push makes the container stored under path the parent of every
// element registered until the matching [Registry.Pop].
func (r *Registry) Push(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.elements[path]
	if !ok {
		return &RegistrationError{Path: path, Reason: "unknown parent"}
	}
	if !e.Kind.container() {
		return &RegistrationError{Path: path, Reason: "parent must be an api or group"}
	}

	r.stack = append(r.stack, path)
	return nil
}

// Pop restores the parent context active before the last [Registry.Push].
func (r *Registry) Pop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.stack) == 0 {
		return
	}
	r.stack = r.stack[:len(r.stack)-1]
}

// Current returns the full path of the active parent context.
func (r *Registry) Current() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.current()
}

func (r *Registry) current() (string, bool) {
	if len(r.stack) == 0 {
		return "", false
	}
	return r.stack[len(r.stack)-1], true
}

// Register stores an api or group element, parenting it to the active
// context when there is one. Registering a path a second time replaces
// the stored element and drops every element declared below it.
func (r *Registry) Register(e *Element) error {
	if !e.Kind.container() {
		return &RegistrationError{Path: e.Name, Reason: "only apis and groups can be registered as containers"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if parent, ok := r.current(); ok {
		e.Parent = parent
	}

	key := r.fullPath(e)
	if _, exists := r.elements[key]; exists {
		r.dropDescendants(key)
		r.tree.prune(key)
	}
	r.store(key, e)
	r.tree.ensureBranch(key, e.Kind)
	return nil
}

func (r *Registry) dropDescendants(key string) {
	prefix := key + "."

	order := r.order[:0]
	for _, k := range r.order {
		if strings.HasPrefix(k, prefix) {
			delete(r.elements, k)
			continue
		}
		order = append(order, k)
	}
	r.order = order
}

// RegisterRoute stores a route under the active context and installs
// its callable in the tree.
func (r *Registry) RegisterRoute(e *Element) error {
	if e.Kind != KindRoute {
		return &RegistrationError{Path: e.Name, Reason: "element is not a route"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.current()
	if !ok {
		return &RegistrationError{Path: e.Name, Reason: "routes must be declared inside an api or group"}
	}
	e.Parent = parent

	key := r.fullPath(e)
	r.store(key, e)
	r.tree.setLeaf(key, r.leaf(key))
	return nil
}

func (r *Registry) store(key string, e *Element) {
	e.reg = r
	if _, exists := r.elements[key]; !exists {
		r.order = append(r.order, key)
	}
	r.elements[key] = e
}

// FullPath returns the dotted chain of ancestor names ending in the
// name of e.
func (r *Registry) FullPath(e *Element) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.fullPath(e)
}

func (r *Registry) fullPath(e *Element) string {
	if e.Parent == "" {
		return e.Name
	}

	parent, ok := r.elements[e.Parent]
	if !ok || parent == e {
		return e.Parent + "." + e.Name
	}
	return r.fullPath(parent) + "." + e.Name
}

// Get returns the element stored under path.
func (r *Registry) Get(path string) (*Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.elements[path]
	return e, ok
}

// Api resolves name to the api which owns it. The name may be the path
// of the api itself, of any element below it, or a dotted suffix of one
// of those paths.
func (r *Registry) Api(name string) (*Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.elements[name]
	if !ok {
		for _, key := range r.order {
			if strings.HasSuffix(key, "."+name) {
				e, ok = r.elements[key], true
				break
			}
		}
	}
	if !ok {
		return nil, false
	}

	for e.Kind != KindApi {
		if e.Parent == "" {
			return nil, false
		}
		e, ok = r.elements[e.Parent]
		if !ok {
			return nil, false
		}
	}
	return e, true
}

// Children returns, in registration order, the elements whose parent is path.
func (r *Registry) Children(path string) []*Element {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var children []*Element
	for _, key := range r.order {
		e := r.elements[key]
		if e.Parent == path {
			children = append(children, e)
		}
	}
	return children
}

// Elements returns every element in registration order.
func (r *Registry) Elements() []*Element {
	r.mu.RLock()
	defer r.mu.RUnlock()

	elements := make([]*Element, 0, len(r.order))
	for _, key := range r.order {
		elements = append(elements, r.elements[key])
	}
	return elements
}

// Update replaces the stored element sharing the full path of e. It is
// a no-op for elements which were never registered.
func (r *Registry) Update(e *Element) {
	if e == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.fullPath(e)
	if _, ok := r.elements[key]; !ok {
		return
	}
	e.reg = r
	r.elements[key] = e
}

// resolve walks from e up through its ancestors and returns the first
// element for which has reports true.
func (r *Registry) resolve(e *Element, has func(*Element) bool) (*Element, bool) {
	for e != nil {
		if has(e) {
			return e, true
		}
		if e.Parent == "" {
			return nil, false
		}

		var ok bool
		e, ok = r.Get(e.Parent)
		if !ok {
			return nil, false
		}
	}
	return nil, false
}

// EffectiveCache resolves the cache ttl applying to e.
func (r *Registry) EffectiveCache(e *Element) (ttl time.Duration, ok bool) {
	_, ok = r.resolve(e, func(el *Element) bool {
		ttl, ok = el.Cache()
		return ok
	})
	return ttl, ok
}

// EffectiveRetry resolves the retry budget applying to e.
func (r *Registry) EffectiveRetry(e *Element) (n int, ok bool) {
	_, ok = r.resolve(e, func(el *Element) bool {
		n, ok = el.Retry()
		return ok
	})
	return n, ok
}

// EffectiveTimeout resolves the per attempt timeout applying to e.
func (r *Registry) EffectiveTimeout(e *Element) (t Timeout, ok bool) {
	_, ok = r.resolve(e, func(el *Element) bool {
		t, ok = el.Timeout()
		return ok
	})
	return t, ok
}

// EffectiveRate resolves the rate limit applying to e together with
// the full path of the element defining it, which keys the window.
func (r *Registry) EffectiveRate(e *Element) (rate Rate, key string, ok bool) {
	owner, ok := r.resolve(e, func(el *Element) bool {
		rate, ok = el.Rate()
		return ok
	})
	if !ok {
		return Rate{}, "", false
	}
	return rate, r.FullPath(owner), true
}
