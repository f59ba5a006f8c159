// Package trie implements a persistent, copy-on-write prefix map from byte
// strings to typed values. Every mutation returns a new Trie; the receiver
// is never modified, and unmodified subtrees are shared by reference
// between versions.
package trie

import "reflect"

// node is a single trie node. Nodes are immutable once reachable from a
// published Trie: Put and Remove clone the nodes on the mutated path and
// leave every other node shared with the source trie.
type node struct {
	children map[byte]*node
	hasValue bool
	value    any
	typ      reflect.Type
}

func newNode() *node {
	return &node{children: make(map[byte]*node)}
}

// clone returns a node carrying n's value and a fresh copy of its children
// map (pointing at the same child nodes). n may be nil, representing an
// empty node.
func (n *node) clone() *node {
	c := newNode()
	if n == nil {
		return c
	}
	for b, child := range n.children {
		c.children[b] = child
	}
	c.hasValue = n.hasValue
	c.value = n.value
	c.typ = n.typ
	return c
}

// Trie is a persistent map from byte-string keys to typed values. The zero
// value is an empty trie.
type Trie struct {
	root *node
}

// IsEmpty reports whether the trie holds no key with a value.
func (t *Trie) IsEmpty() bool {
	return t == nil || t.root == nil
}

// Get descends from t's root following the bytes of key. It succeeds only
// if the terminal node is a value node whose payload has type T; a
// differently-typed value at that key is reported as a miss, matching the
// source's runtime type-tag check.
func Get[T any](t *Trie, key string) (T, bool) {
	var zero T
	if t == nil || t.root == nil {
		return zero, false
	}

	cur := t.root
	for i := 0; i < len(key); i++ {
		child, ok := cur.children[key[i]]
		if !ok {
			return zero, false
		}
		cur = child
	}
	if !cur.hasValue {
		return zero, false
	}
	v, ok := cur.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Put returns a new trie identical to t except at key's path, where the
// terminal node becomes a value node holding value. Nodes off the path are
// shared by reference with t; nodes on the path are cloned. An empty key
// replaces the root with a value-bearing node that keeps the existing
// root's children.
func Put[T any](t *Trie, key string, value T) *Trie {
	var root *node
	if t != nil {
		root = t.root
	}
	newRoot := root.clone()

	cur := newRoot
	for i := 0; i < len(key); i++ {
		b := key[i]
		child := cur.children[b].clone()
		cur.children[b] = child
		cur = child
	}

	cur.hasValue = true
	cur.value = value
	cur.typ = reflect.TypeOf(value)
	return &Trie{root: newRoot}
}

// Remove returns a new trie with key's value erased. If key is absent (no
// path, or a path whose terminal carries no value), it returns a trie
// structurally equal to t. Otherwise the path is cloned, the terminal loses
// its value, and any node left with no children and no value is dropped
// while walking back toward the root; the root itself may become empty.
func Remove(t *Trie, key string) *Trie {
	if t == nil || t.root == nil {
		return t
	}

	chain := make([]*node, len(key)+1)
	chain[0] = t.root

	orig := t.root
	for i := 0; i < len(key); i++ {
		child, ok := orig.children[key[i]]
		if !ok {
			return t
		}
		orig = child
		chain[i+1] = child
	}
	if !chain[len(key)].hasValue {
		return t
	}

	cloned := make([]*node, len(chain))
	cloned[0] = chain[0].clone()
	for i := 0; i < len(key); i++ {
		c := chain[i+1].clone()
		cloned[i].children[key[i]] = c
		cloned[i+1] = c
	}

	terminal := cloned[len(key)]
	terminal.hasValue = false
	terminal.value = nil
	terminal.typ = nil

	for i := len(key); i > 0; i-- {
		n := cloned[i]
		if len(n.children) == 0 && !n.hasValue {
			delete(cloned[i-1].children, key[i-1])
		} else {
			break
		}
	}

	newRoot := cloned[0]
	if len(newRoot.children) == 0 && !newRoot.hasValue {
		newRoot = nil
	}
	return &Trie{root: newRoot}
}
