package syscall

import "github.com/redstone-os/redstone/internal/ktime"

// RegisterTime installs the Time family (0x50-0x5F) into t, backed by a ktime.Clock/Queue pair.
// mem marshals the TimeSpec-equivalent result back into the caller's address space.
func RegisterTime(t *Table, clock *ktime.Clock, queue *ktime.Queue, mem UserMemory) {
	t.Register(SysClockGet, func(a Args) (uint64, error) {
		clockID := a.Arg1
		outPtr := a.Arg2

		if outPtr == 0 {
			return 0, NewError("clock_get", ErrBadAddress)
		}

		var ns uint64

		switch clockID {
		case 0: // Realtime
			ns = clock.Realtime()
		case 1: // Monotonic
			ns = clock.Monotonic()
		default:
			return 0, NewError("clock_get", ErrInvalidArgument)
		}

		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(ns >> (8 * i))
		}

		if err := mem.WriteBytes(outPtr, buf); err != nil {
			return 0, NewError("clock_get", ErrBadAddress)
		}

		return 0, nil
	})

	t.Register(SysSleep, func(a Args) (uint64, error) {
		durationMs := a.Arg1
		deadlineTick := clock.Ticks() + (durationMs*ktime.HZ)/1000

		done := make(chan struct{})
		queue.ScheduleTimer(ktime.NewTimer(deadlineTick, func() { close(done) }))

		// Sleep is one of the suspension points named in spec.md §5: the calling task blocks here
		// until the timer queue's Advance (driven by the timer IRQ) fires this deadline.
		<-done

		return 0, nil
	})

	t.Register(SysTimerCreate, func(a Args) (uint64, error) {
		expiresAtNs := a.Arg1
		queue.ScheduleHRTimer(ktime.NewHRTimer(expiresAtNs, func() {}))

		return 0, nil
	})

	t.Register(SysTimerSet, func(a Args) (uint64, error) {
		expiresAtTick := a.Arg1
		queue.ScheduleTimer(ktime.NewTimer(expiresAtTick, func() {}))

		return 0, nil
	})
}
