package kernel

import (
	"encoding/binary"

	"github.com/redstone-os/redstone/internal/ipc"
	"github.com/redstone-os/redstone/internal/kobject"
	"github.com/redstone-os/redstone/internal/mm"
	"github.com/redstone-os/redstone/internal/sched"
)

// PortFor implements syscall.IPCOps, resolving a handle in taskID's table to the live *ipc.Port
// it names, if the dispatcher really is a port and not some other kind of object.
func (k *Kernel) PortFor(taskID uint64, h kobject.Handle) (*ipc.Port, kobject.Rights, bool) {
	table := k.HandleTableFor(taskID)
	if table == nil {
		return nil, 0, false
	}

	disp, rights, ok := table.Get(h)
	if !ok {
		return nil, 0, false
	}

	port, ok := disp.Object().(*ipc.Port)
	if !ok {
		return nil, 0, false
	}

	return port, rights, true
}

// InstallPort implements syscall.IPCOps, wrapping p in a fresh Dispatcher and installing it in
// taskID's handle table.
func (k *Kernel) InstallPort(taskID uint64, p *ipc.Port, rights kobject.Rights) kobject.Handle {
	table := k.HandleTableFor(taskID)
	if table == nil {
		return kobject.InvalidHandle
	}

	return table.Alloc(kobject.NewDispatcher(p), rights)
}

// Futex implements syscall.IPCOps.
func (k *Kernel) Futex() *ipc.Futex {
	return k.FutexSet
}

// LoadWord implements syscall.IPCOps: it reads the 4 bytes at addr in taskID's address space,
// the value a futex wait/wake compares against, via the same simulated physical RAM UserMemory
// reads and writes through.
func (k *Kernel) LoadWord(taskID uint64, addr uint64) (uint32, error) {
	as := k.AddressSpaceFor(taskID)
	if as == nil {
		return 0, errNoSuchTask
	}

	buf, err := k.readPhys(as, addr, 4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf), nil
}

// Block implements syscall.IPCOps, moving taskID's task to sched.StateBlocked for the duration of
// a blocking port or futex call.
func (k *Kernel) Block(taskID uint64) {
	if t, ok := k.TaskByID(sched.TaskID(taskID)); ok {
		k.Sched.Block(t)
	}
}

// Wake implements syscall.IPCOps, moving taskID's task back onto its ready queue once a blocking
// port or futex call returns.
func (k *Kernel) Wake(taskID uint64) {
	if t, ok := k.TaskByID(sched.TaskID(taskID)); ok {
		k.Sched.Wake(t)
	}
}

// CreateVMO implements syscall.IPCOps, allocating a fresh shared-memory region from the kernel's
// own frame pool, matching spec.md §4.6's VMO model.
func (k *Kernel) CreateVMO(size uint64) (*ipc.SharedMemory, error) {
	return ipc.NewSharedMemory(k.PMM, size)
}

// MapVMO implements syscall.IPCOps, mapping shm's frames into taskID's address space starting at
// page, matching spec.md §8 scenario 2's handle-transfer-then-map sequence.
func (k *Kernel) MapVMO(taskID uint64, shm *ipc.SharedMemory, page uint64, rights kobject.Rights) error {
	as := k.AddressSpaceFor(taskID)
	if as == nil {
		return errNoSuchTask
	}

	return shm.Map(k.VMM, as, mm.Addr(page), rights)
}
