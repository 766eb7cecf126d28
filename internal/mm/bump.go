package mm

import "sync"

// BumpAllocator is a monotonic-pointer allocator with no free list, ported from
// mm/alloc/bump.rs: it hands out memory by advancing next, and only resets next back to the base
// once every outstanding allocation has been freed. It is meant for early-boot allocation before
// a full allocator is available, not as the kernel's general-purpose heap.
type BumpAllocator struct {
	mu sync.Mutex

	heapStart, heapEnd Addr
	next               Addr
	allocations        int
}

// NewBumpAllocator creates an uninitialized bump allocator; call Init before first use.
func NewBumpAllocator() *BumpAllocator {
	return &BumpAllocator{}
}

// Init sets the allocator's bounds, matching bump.rs's init(heap_start, heap_size).
func (b *BumpAllocator) Init(heapStart Addr, heapSize Addr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.heapStart = heapStart
	b.heapEnd = heapStart + heapSize
	b.next = heapStart
	b.allocations = 0
}

// Alloc returns align-aligned, size-byte region, or ErrOutOfMemory if the heap is exhausted.
func (b *BumpAllocator) Alloc(size, align Addr) (Addr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if align == 0 {
		align = 1
	}

	start := AlignUp(b.next, align)
	end := start + size

	if end < start || end > b.heapEnd {
		return 0, newError("Alloc", kindOutOfMemory, start)
	}

	b.next = end
	b.allocations++

	return start, nil
}

// Dealloc decrements the live-allocation count. The address and size arguments are accepted for
// interface symmetry with other allocators but are not otherwise inspected, matching the
// original's "_ptr, _layout" unused parameters: a bump allocator cannot free an individual
// allocation, only reclaim the whole arena once every allocation made from it has been freed.
func (b *BumpAllocator) Dealloc(_ Addr, _ Addr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allocations > 0 {
		b.allocations--
	}

	if b.allocations == 0 {
		b.next = b.heapStart
	}
}

// Grow extends the heap by extraSize bytes, mapping newly covered pages through vmm with frames
// drawn from pmm, matching bump.rs's grow(). It returns an error without partially growing if any
// page fails to allocate or map.
func (b *BumpAllocator) Grow(vmm *VMM, as *AddressSpace, pmm *PMM, extraSize Addr) error {
	b.mu.Lock()
	newEnd := b.heapEnd + extraSize
	oldEnd := b.heapEnd
	b.mu.Unlock()

	for page := oldEnd; page < newEnd; page += PageSize {
		frame, err := pmm.AllocFrame(ZoneNormal)
		if err != nil {
			return err
		}

		if err := vmm.Map(as, page, frame, Present|Writable); err != nil {
			_ = pmm.FreeFrame(frame)
			return err
		}
	}

	b.mu.Lock()
	b.heapEnd = newEnd
	b.mu.Unlock()

	return nil
}
