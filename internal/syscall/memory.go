package syscall

import (
	"errors"

	"github.com/redstone-os/redstone/internal/mm"
)

// MemoryOps is the narrow surface the memory syscall family needs. AddressSpaceFor resolves the
// calling task's address space; internal/kernel supplies the concrete implementation. WakeKswapd
// triggers a reclaim pass after an allocation failure, matching spec.md §4.1's recoverable-OOM
// policy: a caller-visible out-of-memory still wakes the reclaim daemon before returning.
type MemoryOps interface {
	AddressSpaceFor(taskID uint64) *mm.AddressSpace
	NumCores() int32
	WakeKswapd()
}

// RegisterMemory installs the Memory family (0x10-0x1F) into t, backed by vmm/pmm.
func RegisterMemory(t *Table, vmm *mm.VMM, pmm *mm.PMM, ops MemoryOps) {
	t.Register(SysMemAlloc, func(a Args) (uint64, error) {
		zone := mm.Zone(a.Arg2)

		frame, err := pmm.AllocFrame(zone)
		if err != nil {
			ops.WakeKswapd()
			return 0, NewError("mem_alloc", ErrOutOfMemory)
		}

		return uint64(frame), nil
	})

	t.Register(SysMemFree, func(a Args) (uint64, error) {
		if err := pmm.FreeFrame(mm.Frame(a.Arg1)); err != nil {
			return 0, NewError("mem_free", ErrInvalidArgument)
		}

		return 0, nil
	})

	t.Register(SysMemMap, func(a Args) (uint64, error) {
		as := ops.AddressSpaceFor(a.Arg1)
		if as == nil {
			return 0, NewError("mem_map", ErrInvalidArgument)
		}

		page := mm.Addr(a.Arg2)
		frame := mm.Frame(a.Arg3)
		flags := mm.MapFlags(a.Arg4)

		if err := vmm.MapInTarget(as, page, frame, flags); err != nil {
			return 0, mapMMError("mem_map", err)
		}

		return 0, nil
	})

	t.Register(SysMemAllocContig, func(a Args) (uint64, error) {
		zone := mm.Zone(a.Arg1)
		n := uint32(a.Arg2)
		align := uint32(a.Arg3)

		frame, err := pmm.AllocContiguous(zone, n, align)
		if err != nil {
			ops.WakeKswapd()
			return 0, NewError("mem_alloc_contig", ErrOutOfMemory)
		}

		return uint64(frame), nil
	})

	t.Register(SysMemSplitHuge, func(a Args) (uint64, error) {
		as := ops.AddressSpaceFor(a.Arg1)
		if as == nil {
			return 0, NewError("mem_split_huge", ErrInvalidArgument)
		}

		if err := vmm.SplitHugePage(as, mm.Addr(a.Arg2)); err != nil {
			return 0, mapMMError("mem_split_huge", err)
		}

		return 0, nil
	})

	t.Register(SysMemUnmap, func(a Args) (uint64, error) {
		as := ops.AddressSpaceFor(a.Arg1)
		if as == nil {
			return 0, NewError("mem_unmap", ErrInvalidArgument)
		}

		page := mm.Addr(a.Arg2)

		if err := vmm.Unmap(as, page, ops.NumCores()); err != nil {
			return 0, mapMMError("mem_unmap", err)
		}

		return 0, nil
	})

	t.Register(SysMemProtect, func(a Args) (uint64, error) {
		as := ops.AddressSpaceFor(a.Arg1)
		if as == nil {
			return 0, NewError("mem_protect", ErrInvalidArgument)
		}

		page := mm.Addr(a.Arg2)
		flags := mm.MapFlags(a.Arg3)

		if err := vmm.Protect(as, page, flags); err != nil {
			return 0, mapMMError("mem_protect", err)
		}

		return 0, nil
	})
}

// mapMMError translates an internal/mm sentinel error into the syscall boundary's error taxonomy.
func mapMMError(op string, err error) error {
	switch {
	case errors.Is(err, mm.ErrOutOfMemory):
		return NewError(op, ErrOutOfMemory)
	case errors.Is(err, mm.ErrAlreadyMapped):
		return NewError(op, ErrAddressInUse)
	case errors.Is(err, mm.ErrNotMapped):
		return NewError(op, ErrNotFound)
	case errors.Is(err, mm.ErrInvalidAlignment):
		return NewError(op, ErrBadAlignment)
	default:
		return NewError(op, ErrInvalidArgument)
	}
}
