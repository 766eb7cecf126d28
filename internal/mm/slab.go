package mm

import "sync"

// SlabAllocator serves small, fixed-size object allocations (kernel objects, handle-table
// entries, task structs) out of pages obtained from a BuddyAllocator, avoiding the internal
// fragmentation a general-purpose allocator would incur for many same-sized objects. Declared but
// unimplemented in the original (mm/alloc/mod.rs just re-exports the module); built here in the
// same explicit-Init style as BumpAllocator and BuddyAllocator.
type SlabAllocator struct {
	mu sync.Mutex

	buddy      *BuddyAllocator
	objectSize uint64
	freeList   []Addr // free object addresses within already-carved slabs
	pageBase   Addr   // HHDM-mapped base of the page(s) carved so far, 0 until first carve
	pageOffset uint64
}

// NewSlabAllocator creates a slab allocator for fixed-size objects of objectSize bytes, drawing
// backing pages from buddy. Alloc takes the VMM whose HHDM gives each freshly carved page its
// virtual address (HHDM base plus the physical address); no mapping is installed for it.
func NewSlabAllocator(buddy *BuddyAllocator, objectSize uint64) *SlabAllocator {
	if objectSize == 0 {
		objectSize = 8
	}

	return &SlabAllocator{buddy: buddy, objectSize: objectSize}
}

// Alloc returns the address of one objectSize-byte object, carving a fresh page from the buddy
// allocator when the current slab is exhausted.
func (s *SlabAllocator) Alloc(vmm *VMM) (Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.freeList); n > 0 {
		addr := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]

		return addr, nil
	}

	if s.pageBase == 0 || s.pageOffset+s.objectSize > PageSize {
		frame, err := s.buddy.AllocPages(1)
		if err != nil {
			return 0, err
		}

		s.pageBase = vmm.PhysToVirt(frame.Addr())
		s.pageOffset = 0
	}

	addr := s.pageBase + Addr(s.pageOffset)
	s.pageOffset += s.objectSize

	return addr, nil
}

// Free returns an object to the slab's free list for reuse by a later Alloc.
func (s *SlabAllocator) Free(addr Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.freeList = append(s.freeList, addr)
}
