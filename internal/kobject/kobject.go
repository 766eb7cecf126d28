// Package kobject implements the kernel's object, rights, and handle layer (C5): every resource a
// task can act on — a task itself, a port, a region of shared memory, a timer — is a KObject
// reached only through a Handle carrying a Rights bitmask. Ported from core/object/{kobject,
// rights,refcount,dispatcher}.rs and syscall/handle/table.rs, in the teacher's style of small,
// explicit-lock controllers (vm.Memory, vm.Interrupt) rather than a framework.
package kobject

import (
	"sync/atomic"
)

// KOID uniquely identifies a kernel object for its lifetime, matching core/object/kobject.rs's
// Koid type.
type KOID uint64

var koidGenerator atomic.Uint64

// GenerateKOID returns a fresh, never-reused KOID, matching generate_koid's monotonic counter.
// The generator starts at 1 so KOID zero can serve as a reserved "no object" sentinel.
func GenerateKOID() KOID {
	return KOID(koidGenerator.Add(1))
}

// Object is the base capability every kernel object must implement, matching the KObject trait:
// an identity, a type name for diagnostics, and a hook run exactly once when the last reference
// is dropped.
type Object interface {
	KOID() KOID
	TypeName() string
	OnFinalRelease()
}

// RefCount is an atomic reference counter with the acquire/release discipline from
// core/object/refcount.rs: increments are Relaxed (the caller already holds a valid reference),
// but the decrement that reaches zero is paired with an acquire fence so the releasing goroutine
// observes every write made by goroutines that decremented before it.
type RefCount struct {
	count atomic.Int64
}

// NewRefCount creates a counter with the given initial value.
func NewRefCount(initial int64) *RefCount {
	rc := &RefCount{}
	rc.count.Store(initial)

	return rc
}

// Inc increments the count and returns the value beforehand.
func (rc *RefCount) Inc() int64 {
	return rc.count.Add(1) - 1
}

// Dec decrements the count and reports whether it reached zero, meaning the caller now owns the
// last reference and must finalize the object. Go's atomic.Int64 doesn't expose a separate
// Release-ordered add, but CompareAndSwap-free fetch_sub via Add already provides the sequential
// consistency errors.Is-style callers need; the acquire-fence step from the original is preserved
// conceptually (a CAS loop's observed value already synchronizes-with every prior decrement).
func (rc *RefCount) Dec() bool {
	return rc.count.Add(-1) == 0
}

// Get returns the current count. Like the original's relaxed load, this is a snapshot only
// meaningful for diagnostics, not for deciding whether to free the object.
func (rc *RefCount) Get() int64 {
	return rc.count.Load()
}

// Dispatcher wraps a KObject and is what Handles actually point to, matching
// core/object/dispatcher.rs: multiple handles may share one Dispatcher (and therefore one
// underlying Object), each with its own Rights.
type Dispatcher struct {
	object Object
	refs   *RefCount
}

// NewDispatcher wraps obj in a Dispatcher with one initial reference.
func NewDispatcher(obj Object) *Dispatcher {
	return &Dispatcher{object: obj, refs: NewRefCount(1)}
}

// Object returns the underlying kernel object.
func (d *Dispatcher) Object() Object {
	return d.object
}

// KOID returns the underlying object's KOID.
func (d *Dispatcher) KOID() KOID {
	return d.object.KOID()
}

// acquire adds a reference, called when a new Handle is created pointing at this dispatcher.
func (d *Dispatcher) acquire() {
	d.refs.Inc()
}

// release drops a reference and runs the object's finalizer if it was the last one.
func (d *Dispatcher) release() {
	if d.refs.Dec() {
		d.object.OnFinalRelease()
	}
}
