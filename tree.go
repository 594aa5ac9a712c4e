// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"context"
	"strings"
	"sync"
)

// RouteFunc invokes a declared route.
type RouteFunc func(context.Context, ...CallOption) (any, error)

// Tree is the callable projection of the declared elements. Containers
// are branches and routes are leaves.
type Tree struct {
	mu   sync.RWMutex
	root *Node
}

// Node is a single branch or leaf of a [Tree].
type Node struct {
	tree     *Tree
	name     string
	kind     Kind
	children map[string]*Node
	order    []string
	call     RouteFunc
}

func newTree() *Tree {
	t := &Tree{}
	t.root = t.newNode("", KindGroup)
	return t
}

func (t *Tree) newNode(name string, kind Kind) *Node {
	return &Node{
		tree:     t,
		name:     name,
		kind:     kind,
		children: make(map[string]*Node),
	}
}

// Root returns the unnamed node holding every top level element.
func (t *Tree) Root() *Node {
	return t.root
}

// Lookup returns the node at the dotted path.
func (t *Tree) Lookup(path string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.root
	for _, part := range strings.Split(path, ".") {
		child, ok := n.children[part]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

// walk returns the node at path, creating missing branches along the way.
func (t *Tree) walk(path string) *Node {
	n := t.root
	for _, part := range strings.Split(path, ".") {
		child, ok := n.children[part]
		if !ok {
			child = t.newNode(part, KindGroup)
			n.children[part] = child
			n.order = append(n.order, part)
		}
		n = child
	}
	return n
}

func (t *Tree) ensureBranch(path string, kind Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.walk(path)
	if n.call == nil {
		n.kind = kind
	}
}

// prune removes every node below path.
func (t *Tree) prune(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.walk(path)
	n.children = make(map[string]*Node)
	n.order = nil
}

func (t *Tree) setLeaf(path string, f RouteFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.walk(path)
	n.kind = KindRoute
	n.call = f
}

// Name
func (n *Node) Name() string {
	return n.name
}

// Kind reports whether the node mirrors an api, a group or a route.
func (n *Node) Kind() Kind {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()

	return n.kind
}

// Child returns the direct child called name.
func (n *Node) Child(name string) (*Node, bool) {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()

	child, ok := n.children[name]
	return child, ok
}

// Children returns the direct children in declaration order.
func (n *Node) Children() []*Node {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()

	children := make([]*Node, 0, len(n.order))
	for _, name := range n.order {
		children = append(children, n.children[name])
	}
	return children
}

// Call invokes the route mirrored by a leaf. Calling a branch returns
// [ErrInvalidPath].
func (n *Node) Call(ctx context.Context, opts ...CallOption) (any, error) {
	n.tree.mu.RLock()
	call := n.call
	n.tree.mu.RUnlock()

	if call == nil {
		return nil, ErrInvalidPath
	}
	return call(ctx, opts...)
}
