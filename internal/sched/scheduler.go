package sched

import (
	"sync"

	"github.com/redstone-os/redstone/internal/log"
)

// Scheduler holds the ready queue(s) and dispatches the next task to run on a core. There is one
// Scheduler per logical CPU in a full SMP build; this package leaves that wiring to
// internal/kernel and focuses on the single-queue dispatch logic, which is the original's scope
// too (sched/scheduler/*.rs has no cross-CPU load-balancing code).
type Scheduler struct {
	mu sync.Mutex

	fifoQueue  []*Task
	rrQueue    []*Task
	idle       *Task
	current    *Task
	logger     *log.Logger
	tickCount  uint64
}

// NewScheduler creates an empty scheduler. idle is the task run when no other task is runnable;
// it must have Policy PolicyRoundRobin and Priority PriorityIdle by convention, matching the
// original's dedicated idle-priority band.
func NewScheduler(idle *Task, logger *log.Logger) *Scheduler {
	return &Scheduler{idle: idle, logger: logger}
}

// Enqueue makes t eligible to run, placing it in the FIFO queue or the round-robin queue
// according to its Policy. t must be in state Ready.
func (s *Scheduler) Enqueue(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.State = StateReady

	switch t.Policy {
	case PolicyFIFO:
		s.fifoQueue = append(s.fifoQueue, t)
	default:
		s.rrQueue = append(s.rrQueue, t)
	}
}

// pickNext must be called with s.mu held. FIFO tasks always preempt round-robin tasks, matching
// the "Realtime" framing of SchedulingPolicy::Fifo in the original: a FIFO task runs to
// completion or voluntary yield before any round-robin task gets the CPU.
func (s *Scheduler) pickNext() *Task {
	if len(s.fifoQueue) > 0 {
		next := s.fifoQueue[0]
		s.fifoQueue = s.fifoQueue[1:]

		return next
	}

	if len(s.rrQueue) > 0 {
		next := s.rrQueue[0]
		s.rrQueue = s.rrQueue[1:]

		return next
	}

	return s.idle
}

// Switch selects the next runnable task and returns it, having first moved the previously
// running task (if any) to the back of its queue, unless it blocked or exited. now is the current
// tick count, used to update accounting.
//
// The caller must perform the actual register/stack switch after Switch returns and must not be
// holding any scheduler-owned lock while doing so, matching the teacher's discipline in
// vm.Run/vm.Step of releasing locks before any operation that might not return promptly — the
// hosted simulation has no real register file to save, so that concern is noted but not modeled
// further.
func (s *Scheduler) Switch(now uint64, voluntary bool) *Task {
	s.mu.Lock()

	prev := s.current
	if prev != nil && prev != s.idle {
		prev.Accounting.EndExec(now)
		prev.Accounting.AccountSwitch(voluntary)

		if prev.State == StateRunning {
			prev.State = StateReady

			switch prev.Policy {
			case PolicyFIFO:
				s.fifoQueue = append(s.fifoQueue, prev)
			default:
				s.rrQueue = append(s.rrQueue, prev)
			}
		}
	}

	next := s.pickNext()
	next.State = StateRunning
	next.Accounting.StartExec(now)
	s.current = next
	s.tickCount = now

	s.mu.Unlock()

	if next != s.idle {
		s.logger.Debug("scheduled task", log.Any("task", next.Name), log.Any("policy", next.Policy.String()))
	}

	return next
}

// Current returns the task presently marked as running, or nil before the first Switch.
func (s *Scheduler) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Block moves t out of the running state and off any ready queue, for use when a task begins
// waiting on I/O, a port receive, or a futex.
func (s *Scheduler) Block(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.State = StateBlocked

	for _, q := range []*[]*Task{&s.fifoQueue, &s.rrQueue} {
		kept := (*q)[:0]
		for _, queued := range *q {
			if queued != t {
				kept = append(kept, queued)
			}
		}
		*q = kept
	}
}

// Wake moves a previously blocked task back onto its policy's ready queue.
func (s *Scheduler) Wake(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.State = StateReady

	switch t.Policy {
	case PolicyFIFO:
		s.fifoQueue = append(s.fifoQueue, t)
	default:
		s.rrQueue = append(s.rrQueue, t)
	}
}

// Tick charges one timer tick against the currently running task's quantum and reports whether
// that quantum has expired and the task should be preempted. Callers are expected to call Switch
// immediately afterward when Tick returns true.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current == s.idle {
		return false
	}

	if s.current.Accounting.QuantumLeft == 0 {
		return true
	}

	s.current.Accounting.QuantumLeft--

	return s.current.Accounting.QuantumLeft == 0
}
