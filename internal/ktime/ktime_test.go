package ktime_test

import (
	"testing"

	"github.com/redstone-os/redstone/internal/ktime"
)

func TestClockMonotonicAdvancesWithTicks(t *testing.T) {
	c := ktime.New(1_700_000_000)

	for i := 0; i < ktime.HZ; i++ {
		c.Tick()
	}

	if got, want := c.Monotonic(), uint64(1_000_000_000); got != want {
		t.Fatalf("Monotonic() after %d ticks = %d, want %d", ktime.HZ, got, want)
	}
}

func TestClockRealtimeIncludesBootBase(t *testing.T) {
	c := ktime.New(1_700_000_000)
	c.Tick()

	got := c.Realtime()
	want := uint64(1_700_000_000)*1_000_000_000 + c.Monotonic()

	if got != want {
		t.Fatalf("Realtime() = %d, want %d", got, want)
	}
}

func TestQueueAdvanceFiresExpiredTimers(t *testing.T) {
	c := ktime.New(0)
	q := ktime.NewQueue(c)

	fired := false
	q.ScheduleTimer(ktime.NewTimer(3, func() { fired = true }))

	for i := 0; i < 2; i++ {
		c.Tick()
		q.Advance()
	}

	if fired {
		t.Fatal("timer fired before its expiry tick")
	}

	c.Tick()
	q.Advance()

	if !fired {
		t.Fatal("timer did not fire at its expiry tick")
	}
}

func TestQueueAdvanceFiresExpiredHRTimers(t *testing.T) {
	c := ktime.New(0)
	q := ktime.NewQueue(c)

	fired := false
	q.ScheduleHRTimer(ktime.NewHRTimer(1, func() { fired = true }))

	c.Tick()
	q.Advance()

	if !fired {
		t.Fatal("hrtimer did not fire once its deadline had passed")
	}
}
