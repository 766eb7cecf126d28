package syscall

import "github.com/redstone-os/redstone/internal/sched"

// ProcessOps is the narrow surface the process syscall family needs from the scheduler and task
// table; internal/kernel supplies the concrete implementation.
type ProcessOps interface {
	CurrentTask() *sched.Task
	Exit(t *sched.Task, code int32)
	Spawn(name string, policy sched.Policy, priority uint8) (*sched.Task, error)
	Wait(parent *sched.Task, child sched.TaskID) (exitCode int32, err error)
	Yield()
	TaskByID(id sched.TaskID) (*sched.Task, bool)
}

// RegisterProcess installs the Process family (0x01-0x0F) into t. mem resolves the process name
// argument to SysSpawn out of the caller's address space.
func RegisterProcess(t *Table, ops ProcessOps, mem UserMemory) {
	t.Register(SysExit, func(a Args) (uint64, error) {
		task := ops.CurrentTask()
		if task == nil {
			return 0, NewError("exit", ErrProcessNotFound)
		}

		ops.Exit(task, int32(a.Arg1))

		return 0, nil
	})

	t.Register(SysSpawn, func(a Args) (uint64, error) {
		name, err := mem.ReadString(a.Arg1, 256)
		if err != nil {
			return 0, NewError("spawn", ErrBadAddress)
		}

		task, err := ops.Spawn(name, sched.Policy(a.Arg3), uint8(a.Arg4))
		if err != nil {
			return 0, NewError("spawn", ErrProcessNotFound)
		}

		return uint64(task.ID), nil
	})

	t.Register(SysWait, func(a Args) (uint64, error) {
		task := ops.CurrentTask()
		if task == nil {
			return 0, NewError("wait", ErrProcessNotFound)
		}

		code, err := ops.Wait(task, sched.TaskID(a.Arg1))
		if err != nil {
			return 0, NewError("wait", ErrProcessNotFound)
		}

		return uint64(uint32(code)), nil
	})

	t.Register(SysYield, func(a Args) (uint64, error) {
		ops.Yield()
		return 0, nil
	})

	t.Register(SysGetPID, func(a Args) (uint64, error) {
		task := ops.CurrentTask()
		if task == nil {
			return 0, NewError("getpid", ErrProcessNotFound)
		}

		return uint64(task.ID), nil
	})

	t.Register(SysGetTID, func(a Args) (uint64, error) {
		task := ops.CurrentTask()
		if task == nil {
			return 0, NewError("gettid", ErrProcessNotFound)
		}

		return uint64(task.ID), nil
	})
}
