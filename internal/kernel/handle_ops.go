package kernel

import (
	"github.com/redstone-os/redstone/internal/kobject"
	"github.com/redstone-os/redstone/internal/sched"
)

// HandleTableFor implements syscall.HandleOps, resolving a task's own handle table. Every task
// keeps its table inline (sched.Task.Handles) rather than the kernel owning a separate registry,
// matching the original's one-table-per-process design.
func (k *Kernel) HandleTableFor(taskID uint64) *kobject.HandleTable {
	k.mu.Lock()
	task, ok := k.tasks[sched.TaskID(taskID)]
	k.mu.Unlock()

	if !ok {
		return nil
	}

	return task.Handles
}
