package ksync

import "sync/atomic"

// RCU is a minimal read-copy-update guard for read-mostly data such as a task's address-space
// pointer or a routing table entry. Readers never block; a writer publishes a new value with
// Replace, and the previous value is left to Go's garbage collector once no reader holds it. This
// mirrors the original's Rcu<T> (an AtomicPtr plus manual Arc-style refcounting) without requiring
// unsafe pointer arithmetic — the per-value refcount here only counts in-flight readers; no
// reclaim callback is run and nothing waits for it to reach zero.
type RCU[T any] struct {
	current atomic.Pointer[rcuNode[T]]
}

type rcuNode[T any] struct {
	value    T
	refcount atomic.Int32
}

// NewRCU creates an RCU guard holding the given initial value.
func NewRCU[T any](initial T) *RCU[T] {
	r := &RCU[T]{}
	node := &rcuNode[T]{value: initial}
	node.refcount.Store(1)
	r.current.Store(node)

	return r
}

// ReadGuard pins the current value against replacement for the duration of a read section.
type ReadGuard[T any] struct {
	node *rcuNode[T]
}

// Read begins a read-side critical section, pinning the value in effect at the time of the call.
func (r *RCU[T]) Read() *ReadGuard[T] {
	node := r.current.Load()
	node.refcount.Add(1)

	return &ReadGuard[T]{node: node}
}

// Value returns the pinned value.
func (g *ReadGuard[T]) Value() T {
	return g.node.value
}

// Done ends the read-side critical section.
func (g *ReadGuard[T]) Done() {
	g.node.refcount.Add(-1)
}

// Replace publishes a new value. Readers already pinned to the previous value keep seeing it
// until they call Done; Replace itself does not wait for them.
func (r *RCU[T]) Replace(value T) {
	node := &rcuNode[T]{value: value}
	node.refcount.Store(1)
	r.current.Store(node)
}
