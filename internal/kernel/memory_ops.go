package kernel

import "github.com/redstone-os/redstone/internal/mm"

// AddressSpaceFor implements syscall.MemoryOps.
func (k *Kernel) AddressSpaceFor(taskID uint64) *mm.AddressSpace {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.addrSpaces[taskID]
}

// NumCores implements syscall.MemoryOps, reporting how many cores a TLB shootdown must reach.
func (k *Kernel) NumCores() int32 {
	return int32(k.Arch.NumCPU())
}
