// Package sched implements task lifecycle and CPU scheduling (C6): task states, per-task resource
// accounting, run queues under round-robin/FIFO policies, and the context-switch bookkeeping that
// ties them together. Ported from sched/task/{state,accounting}.rs and
// sched/scheduler/policy.rs, following the teacher's vm.Run/vm.Step cycle discipline: release
// whatever lock protects the run queue before handing control to the next task, never while
// holding it.
package sched

import (
	"github.com/redstone-os/redstone/internal/kobject"
)

// State is a task's position in its lifecycle, matching sched/task/state.rs's TaskState.
type State int

const (
	StateCreated State = iota
	StateReady
	StateRunning
	StateBlocked
	StateZombie
	StateDead
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateZombie:
		return "zombie"
	case StateDead:
		return "dead"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsRunnable reports whether a task in this state is eligible for the scheduler to dispatch,
// matching TaskState::is_runnable.
func (s State) IsRunnable() bool {
	return s == StateReady || s == StateRunning
}

// Policy selects which scheduling discipline governs a task, matching SchedulingPolicy.
type Policy int

const (
	PolicyRoundRobin Policy = iota
	PolicyFIFO
	PolicyDeadline
)

func (p Policy) String() string {
	switch p {
	case PolicyRoundRobin:
		return "round-robin"
	case PolicyFIFO:
		return "fifo"
	case PolicyDeadline:
		return "deadline"
	default:
		return "unknown"
	}
}

// Priority bands, matching sched/scheduler/policy.rs's PRIORITY_MIN/DEFAULT/MAX/IDLE constants.
// PriorityIdle and PriorityMax coincide deliberately, as in the original: the idle task runs at
// the lowest possible scheduling priority, which is numerically the highest value.
const (
	PriorityMin     uint8 = 0
	PriorityDefault uint8 = 128
	PriorityMax     uint8 = 255
	PriorityIdle    uint8 = 255
)

// DefaultQuantum is the number of timer ticks a task runs before being preempted, absent a
// priority-dependent formula the spec and the original both leave unspecified.
const DefaultQuantum uint64 = 10

// Accounting tracks a task's CPU consumption and scheduling history, matching
// sched/task/accounting.rs's Accounting struct field for field.
type Accounting struct {
	TotalCPUTime        uint64
	UserCPUTime         uint64
	KernelCPUTime        uint64
	LastStartTime        uint64
	VoluntarySwitches    uint64
	InvoluntarySwitches  uint64
	QuantumLeft          uint64
}

// StartExec records that the task has just been given the CPU at time now, matching start_exec.
func (a *Accounting) StartExec(now uint64) {
	a.LastStartTime = now
	a.ResetQuantum()
}

// ResetQuantum refills the task's remaining quantum to DefaultQuantum. The original leaves
// priority-scaled quanta as a TODO; this keeps the same flat default rather than inventing a
// formula the spec doesn't define.
func (a *Accounting) ResetQuantum() {
	a.QuantumLeft = DefaultQuantum
}

// EndExec records that the task has just lost the CPU at time now and returns how long it ran.
// A now earlier than the last start (a clock that appears to have gone backwards) is treated as
// zero elapsed time rather than underflowing, matching end_exec's guard.
func (a *Accounting) EndExec(now uint64) uint64 {
	if now < a.LastStartTime {
		return 0
	}

	delta := now - a.LastStartTime
	a.TotalCPUTime += delta
	a.KernelCPUTime += delta

	return delta
}

// AccountSwitch records one context switch away from the task, split into voluntary (yield,
// blocking I/O) and involuntary (quantum expiry, preemption) buckets.
func (a *Accounting) AccountSwitch(voluntary bool) {
	if voluntary {
		a.VoluntarySwitches++
	} else {
		a.InvoluntarySwitches++
	}
}

// TaskID identifies a task, distinct from its KOID so userspace-visible process/thread IDs can be
// reused or remapped independently of kernel object identity.
type TaskID uint64

// Task is a schedulable unit of execution: the kernel's notion of a thread. A Task is also a
// kobject.Object, so it can be referenced through a Handle the same way a Port or region of
// shared memory can.
type Task struct {
	ID       TaskID
	koid     kobject.KOID
	Name     string
	State    State
	Policy   Policy
	Priority uint8

	Accounting Accounting
	Handles    *kobject.HandleTable

	AddressSpaceID uint64 // identifies the owning AddressSpace; mm package owns the actual table
}

// NewTask creates a task in the Created state with its own handle table.
func NewTask(id TaskID, name string, policy Policy, priority uint8) *Task {
	return &Task{
		ID:       id,
		koid:     kobject.GenerateKOID(),
		Name:     name,
		State:    StateCreated,
		Policy:   policy,
		Priority: priority,
		Handles:  kobject.NewHandleTable(),
	}
}

func (t *Task) KOID() kobject.KOID { return t.koid }
func (t *Task) TypeName() string  { return "task" }
func (t *Task) OnFinalRelease()   {}
