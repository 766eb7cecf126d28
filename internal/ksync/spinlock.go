// Package ksync provides the kernel's low-level synchronization primitives: a spinlock that masks
// interrupts for the duration of the critical section, a blocking mutex, a reader/writer lock, and
// a minimal RCU-style read-mostly guard. All four are ported from the original's
// sync/{spinlock,mutex,rwlock,rcu}.rs, generalized the way the teacher generalizes a register
// controller: one small struct, an explicit Lock/Unlock pair, no hidden state.
package ksync

import (
	"sync"
	"sync/atomic"

	"github.com/redstone-os/redstone/internal/arch"
)

// Spinlock protects a critical section that must not be preempted by an interrupt on the owning
// core, matching the original's Spinlock<T>: acquiring it disables interrupts, and releasing it
// restores whatever state they were in before acquisition (not unconditionally re-enabling them,
// so nested acquisitions on one core behave correctly).
type Spinlock struct {
	cpu arch.CPU

	mu         sync.Mutex
	wasEnabled bool
	held       atomic.Bool
}

// NewSpinlock creates a spinlock bound to the given CPU's interrupt state.
func NewSpinlock(cpu arch.CPU) *Spinlock {
	return &Spinlock{cpu: cpu}
}

// Lock disables interrupts on the owning core and acquires the lock. It spins rather than
// blocking: a spinlock is held for a bounded number of instructions and never across a
// potentially-sleeping call, per spec.md §5.
func (s *Spinlock) Lock() {
	wasEnabled := s.cpu.DisableInterrupts()

	for !s.held.CompareAndSwap(false, true) {
		// Busy-wait: real hardware would pause here; the simulation just retries.
	}

	s.mu.Lock()
	s.wasEnabled = wasEnabled
	s.mu.Unlock()
}

// Unlock releases the lock and restores the interrupt state captured at Lock time.
func (s *Spinlock) Unlock() {
	s.mu.Lock()
	wasEnabled := s.wasEnabled
	s.mu.Unlock()

	s.held.Store(false)

	if wasEnabled {
		s.cpu.EnableInterrupts()
	}
}

// ForceUnlock releases the lock unconditionally without touching interrupt state, the escape
// hatch the original reserves for panic/double-fault recovery paths (`force_unlock` in
// sync/spinlock.rs). It must never be used in ordinary control flow.
func (s *Spinlock) ForceUnlock() {
	s.held.Store(false)
}

// TryLock attempts to acquire the lock without spinning, returning false if already held.
func (s *Spinlock) TryLock() bool {
	wasEnabled := s.cpu.DisableInterrupts()

	if !s.held.CompareAndSwap(false, true) {
		if wasEnabled {
			s.cpu.EnableInterrupts()
		}

		return false
	}

	s.mu.Lock()
	s.wasEnabled = wasEnabled
	s.mu.Unlock()

	return true
}
