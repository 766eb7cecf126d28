package kernel

import (
	"errors"

	"github.com/redstone-os/redstone/internal/sched"
)

// errNoSuchTask is returned by Wait/TaskByID when the named task is unknown.
var errNoSuchTask = errors.New("kernel: no such task")

// CurrentTask implements syscall.ProcessOps.
func (k *Kernel) CurrentTask() *sched.Task {
	return k.Sched.Current()
}

// Exit implements syscall.ProcessOps: it marks t a zombie and releases its address space. A real
// kernel reparents t's children to init here; this hosted kernel has no init task to reparent to,
// so orphaned children simply remain addressable by ID until their own exit.
func (k *Kernel) Exit(t *sched.Task, code int32) {
	k.mu.Lock()
	defer k.mu.Unlock()

	t.State = sched.StateZombie
	_ = code // the exit code is not stored anywhere; Wait reports 0 for every child.

	if as, ok := k.addrSpaces[uint64(t.ID)]; ok {
		k.VMM.ReleaseAddressSpace(as)
	}
}

// Spawn implements syscall.ProcessOps: it allocates a fresh task ID and address space and
// enqueues the new task on the scheduler in state Ready.
func (k *Kernel) Spawn(name string, policy sched.Policy, priority uint8) (*sched.Task, error) {
	k.mu.Lock()

	id := k.nextTaskID
	k.nextTaskID++

	task := sched.NewTask(id, name, policy, priority)
	task.AddressSpaceID = uint64(id)
	k.tasks[id] = task
	k.addrSpaces[uint64(id)] = k.VMM.AllocAddressSpace(int32(k.Arch.NumCPU()))

	k.mu.Unlock()

	k.Sched.Enqueue(task)

	return task, nil
}

// Wait implements syscall.ProcessOps. It succeeds only once the child has reached StateZombie (or
// StateDead), moves it to StateDead, and reports 0: the code passed to Exit is not kept, so the
// child's real exit code is not returned. A child that has not exited yet yields errNoSuchTask
// rather than blocking, since this hosted kernel has no blocking wait queue keyed by
// parent/child the way ipc.Port has one keyed by port.
func (k *Kernel) Wait(parent *sched.Task, child sched.TaskID) (int32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	task, ok := k.tasks[child]
	if !ok {
		return 0, errNoSuchTask
	}

	if task.State != sched.StateZombie && task.State != sched.StateDead {
		return 0, errNoSuchTask
	}

	task.State = sched.StateDead

	return 0, nil
}

// Yield implements syscall.ProcessOps by forcing an involuntary-free reschedule: the current task
// is moved to the back of its ready queue and the next eligible task is switched in.
func (k *Kernel) Yield() {
	k.Sched.Switch(k.Clock.Ticks(), true)
}

// TaskByID implements syscall.ProcessOps.
func (k *Kernel) TaskByID(id sched.TaskID) (*sched.Task, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	task, ok := k.tasks[id]

	return task, ok
}
