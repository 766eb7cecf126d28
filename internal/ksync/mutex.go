package ksync

import (
	"sync/atomic"
)

// Mutex is a sleeping lock that may be held across a blocking call, unlike Spinlock. The original
// (sync/mutex.rs) busy-waits with a TODO to integrate the scheduler's sleep queue once one exists;
// this Go port keeps that same shape — an atomic fast path plus an owner field for diagnostics —
// but parks goroutines on a channel instead of spinning, since a real scheduler integration is
// exactly the thing the original was waiting on.
type Mutex struct {
	state atomic.Bool // true when held.
	owner atomic.Uint32
	waitq chan struct{}
}

// NewMutex creates an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{waitq: make(chan struct{}, 1)}
}

// Lock acquires the mutex, blocking the calling goroutine if it is already held.
func (m *Mutex) Lock(owner uint32) {
	for {
		if m.state.CompareAndSwap(false, true) {
			m.owner.Store(owner)
			return
		}

		<-m.waitq
	}
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock(owner uint32) bool {
	if m.state.CompareAndSwap(false, true) {
		m.owner.Store(owner)
		return true
	}

	return false
}

// Unlock releases the mutex and wakes one waiter, if any.
func (m *Mutex) Unlock() {
	m.owner.Store(0)
	m.state.Store(false)

	select {
	case m.waitq <- struct{}{}:
	default:
	}
}

// Owner returns the id of the task currently holding the mutex, or 0 if unlocked.
func (m *Mutex) Owner() uint32 {
	return m.owner.Load()
}

// Locked reports whether the mutex is currently held.
func (m *Mutex) Locked() bool {
	return m.state.Load()
}
