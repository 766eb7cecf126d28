package ksync

import "sync/atomic"

// Semaphore is a counting semaphore ported from sync/semaphore.rs's AtomicI32 count: Acquire
// blocks while the count is zero or negative, Release increments it and wakes a waiter.
type Semaphore struct {
	count atomic.Int32
	waitq chan struct{}
}

// NewSemaphore creates a semaphore with the given initial count.
func NewSemaphore(initial int32) *Semaphore {
	s := &Semaphore{waitq: make(chan struct{}, 1)}
	s.count.Store(initial)

	return s
}

// Acquire decrements the count, blocking while it is not positive.
func (s *Semaphore) Acquire() {
	for {
		n := s.count.Load()
		if n > 0 && s.count.CompareAndSwap(n, n-1) {
			return
		}

		select {
		case <-s.waitq:
		default:
		}
	}
}

// TryAcquire attempts a non-blocking decrement.
func (s *Semaphore) TryAcquire() bool {
	n := s.count.Load()
	return n > 0 && s.count.CompareAndSwap(n, n-1)
}

// Release increments the count and wakes one waiter, if any.
func (s *Semaphore) Release() {
	s.count.Add(1)

	select {
	case s.waitq <- struct{}{}:
	default:
	}
}

// Count returns the current value, for diagnostics and tests.
func (s *Semaphore) Count() int32 {
	return s.count.Load()
}
