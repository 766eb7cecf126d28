package ksync_test

import (
	"sync"
	"testing"

	"github.com/redstone-os/redstone/internal/arch"
	"github.com/redstone-os/redstone/internal/ksync"
)

func TestSpinlockMasksInterrupts(t *testing.T) {
	m := arch.NewMachine(1)
	cpu := m.CPU(0)
	lock := ksync.NewSpinlock(cpu)

	lock.Lock()

	if cpu.InterruptsEnabled() {
		t.Fatal("expected interrupts disabled while spinlock held")
	}

	lock.Unlock()

	if !cpu.InterruptsEnabled() {
		t.Fatal("expected interrupts restored after spinlock released")
	}
}

func TestSpinlockTryLock(t *testing.T) {
	m := arch.NewMachine(1)
	lock := ksync.NewSpinlock(m.CPU(0))

	if !lock.TryLock() {
		t.Fatal("expected first TryLock to succeed")
	}

	if lock.TryLock() {
		t.Fatal("expected second TryLock to fail while held")
	}

	lock.Unlock()

	if !lock.TryLock() {
		t.Fatal("expected TryLock to succeed after unlock")
	}
}

func TestMutexExcludesConcurrentAccess(t *testing.T) {
	mu := ksync.NewMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(owner uint32) {
			defer wg.Done()
			mu.Lock(owner)
			counter++
			mu.Unlock()
		}(uint32(i))
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}

	if mu.Locked() {
		t.Fatal("expected mutex unlocked after all goroutines finish")
	}
}

func TestRWLockAllowsConcurrentReaders(t *testing.T) {
	lock := ksync.NewRWLock()

	lock.RLock()
	if !lock.TryRLock() {
		t.Fatal("expected a second reader to be admitted")
	}

	if lock.TryLock() {
		t.Fatal("expected writer to be excluded while readers hold the lock")
	}

	lock.RUnlock()
	lock.RUnlock()

	if !lock.TryLock() {
		t.Fatal("expected writer admitted once all readers release")
	}

	lock.Unlock()
}

func TestRCUReadersSeeValueAtTimeOfRead(t *testing.T) {
	r := ksync.NewRCU(1)

	g1 := r.Read()
	if g1.Value() != 1 {
		t.Fatalf("g1.Value() = %d, want 1", g1.Value())
	}

	r.Replace(2)

	if g1.Value() != 1 {
		t.Fatal("existing reader must keep observing the pinned value after Replace")
	}

	g2 := r.Read()
	if g2.Value() != 2 {
		t.Fatalf("g2.Value() = %d, want 2", g2.Value())
	}

	g1.Done()
	g2.Done()
}

func TestSemaphoreAcquireRelease(t *testing.T) {
	sem := ksync.NewSemaphore(1)

	if !sem.TryAcquire() {
		t.Fatal("expected initial acquire to succeed")
	}

	if sem.TryAcquire() {
		t.Fatal("expected second acquire to fail with count exhausted")
	}

	sem.Release()

	if sem.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", sem.Count())
	}

	if !sem.TryAcquire() {
		t.Fatal("expected acquire to succeed after release")
	}
}
