package sched_test

import (
	"os"
	"testing"

	"github.com/redstone-os/redstone/internal/log"
	"github.com/redstone-os/redstone/internal/sched"
)

func newTestScheduler() (*sched.Scheduler, *sched.Task) {
	logger := log.NewFormattedLogger(os.Stderr)
	idle := sched.NewTask(0, "idle", sched.PolicyRoundRobin, sched.PriorityIdle)

	return sched.NewScheduler(idle, logger), idle
}

func TestSchedulerRunsIdleWhenQueueEmpty(t *testing.T) {
	s, idle := newTestScheduler()

	got := s.Switch(0, true)
	if got != idle {
		t.Fatal("expected idle task to run when no other task is ready")
	}
}

func TestSchedulerFIFOPreemptsRoundRobin(t *testing.T) {
	s, _ := newTestScheduler()

	rr := sched.NewTask(1, "rr", sched.PolicyRoundRobin, sched.PriorityDefault)
	fifo := sched.NewTask(2, "fifo", sched.PolicyFIFO, sched.PriorityDefault)

	s.Enqueue(rr)
	s.Enqueue(fifo)

	got := s.Switch(0, true)
	if got != fifo {
		t.Fatalf("Switch() picked %q, want the FIFO task to preempt round-robin", got.Name)
	}
}

func TestSchedulerRoundRobinRotatesQueue(t *testing.T) {
	s, _ := newTestScheduler()

	a := sched.NewTask(1, "a", sched.PolicyRoundRobin, sched.PriorityDefault)
	b := sched.NewTask(2, "b", sched.PolicyRoundRobin, sched.PriorityDefault)

	s.Enqueue(a)
	s.Enqueue(b)

	first := s.Switch(0, true)
	if first != a {
		t.Fatalf("first Switch() = %q, want a", first.Name)
	}

	second := s.Switch(1, true)
	if second != b {
		t.Fatalf("second Switch() = %q, want b", second.Name)
	}

	// a should have been requeued behind b since it didn't block or exit.
	third := s.Switch(2, true)
	if third != a {
		t.Fatalf("third Switch() = %q, want a to have rotated back to the front", third.Name)
	}
}

func TestSchedulerBlockRemovesTaskFromRotation(t *testing.T) {
	s, idle := newTestScheduler()

	a := sched.NewTask(1, "a", sched.PolicyRoundRobin, sched.PriorityDefault)
	s.Enqueue(a)

	s.Switch(0, true) // a now running
	s.Block(a)

	got := s.Switch(1, true)
	if got != idle {
		t.Fatal("expected idle to run after the only task blocked")
	}

	s.Wake(a)

	got = s.Switch(2, true)
	if got != a {
		t.Fatal("expected woken task to be runnable again")
	}
}

func TestAccountingTracksQuantumAndSwitches(t *testing.T) {
	var a sched.Accounting
	a.StartExec(0)

	if a.QuantumLeft != sched.DefaultQuantum {
		t.Fatalf("QuantumLeft = %d, want %d", a.QuantumLeft, sched.DefaultQuantum)
	}

	elapsed := a.EndExec(5)
	if elapsed != 5 {
		t.Fatalf("EndExec() = %d, want 5", elapsed)
	}

	if a.TotalCPUTime != 5 {
		t.Fatalf("TotalCPUTime = %d, want 5", a.TotalCPUTime)
	}

	a.AccountSwitch(false)
	if a.InvoluntarySwitches != 1 {
		t.Fatalf("InvoluntarySwitches = %d, want 1", a.InvoluntarySwitches)
	}
}

func TestSignalHandlersProtectKillAndStop(t *testing.T) {
	h := sched.NewSignalHandlers()

	h.SetAction(sched.SIGKILL, sched.SignalAction{Disposition: sched.DispositionIgnore})
	h.SetAction(sched.SIGSTOP, sched.SignalAction{Disposition: sched.DispositionIgnore})

	if got := h.GetAction(sched.SIGKILL).Disposition; got != sched.DispositionTerminate {
		t.Fatalf("SIGKILL disposition = %v, want Terminate (unoverridable)", got)
	}

	if got := h.GetAction(sched.SIGSTOP).Disposition; got != sched.DispositionTerminate {
		t.Fatalf("SIGSTOP disposition = %v, want Terminate (unoverridable)", got)
	}
}

func TestSignalHandlersDefaultToTerminate(t *testing.T) {
	h := sched.NewSignalHandlers()

	if got := h.GetAction(2).Disposition; got != sched.DispositionTerminate {
		t.Fatalf("default disposition for signal 2 = %v, want Terminate", got)
	}
}
