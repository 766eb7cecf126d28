package kernel

import (
	"github.com/redstone-os/redstone/internal/mm"
	"github.com/redstone-os/redstone/internal/sched"
)

// oomKillExitCode is the exit code the OOM killer passes to Exit for its victim: the negated
// sched.SIGKILL number, a value distinct from a normal exit. Exit does not store exit codes, so
// Wait does not report it.
const oomKillExitCode int32 = -9

// evictPages implements mm.EvictFunc. There is no discardable page cache in this hosted kernel
// (every mapped page is either anonymous or backs a file read once into RootFS, never written
// back), so there is nothing for kswapd to reclaim here: pressure that evictPages can't relieve
// correctly escalates straight to the OOM killer, matching mm/reclaim/kswapd.rs's own fallback.
func (k *Kernel) evictPages(n int) int {
	return 0
}

// oomCandidates implements the scoring half of the OOM killer: every live task's score is the
// inverse of its priority, so low-priority background tasks are preferred victims over
// high-priority ones, matching mm/reclaim/oom.rs's "lower priority, higher badness" heuristic.
func (k *Kernel) oomCandidates() []mm.OOMVictim {
	k.mu.Lock()
	defer k.mu.Unlock()

	victims := make([]mm.OOMVictim, 0, len(k.tasks))

	for id, t := range k.tasks {
		if id == 0 || t.State == sched.StateZombie || t.State == sched.StateDead {
			continue
		}

		victims = append(victims, mm.OOMVictim{
			TaskID: uint64(id),
			Score:  int64(sched.PriorityMax) - int64(t.Priority),
		})
	}

	return victims
}

// killForOOM implements the termination half of the OOM killer, routing through Exit the same way
// a syscall-driven exit does so the victim's address space and PCID are released identically.
func (k *Kernel) killForOOM(taskID uint64) error {
	t, ok := k.TaskByID(sched.TaskID(taskID))
	if !ok {
		return errNoSuchTask
	}

	k.Exit(t, oomKillExitCode)

	return nil
}

// WakeKswapd implements syscall.MemoryOps, triggering one reclaim tick on allocation failure so a
// future allocation has a chance of succeeding, matching spec.md §4.1's recoverable-OOM policy.
func (k *Kernel) WakeKswapd() {
	k.Reclaim.WakeUp()
}
