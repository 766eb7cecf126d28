package mm

import (
	"math/bits"
	"sync"
)

// maxOrder is the largest block size the buddy allocator manages, expressed as a power-of-two
// multiple of PageSize: order 0 is one page, order maxOrder is 2^maxOrder pages.
const maxOrder = 10

// BuddyAllocator is a classic power-of-two buddy allocator sitting on top of the PMM, used for
// kernel allocations larger than a single frame where a bump allocator's one-way growth would
// waste memory. There is no direct original_source analog (mm/alloc/mod.rs only declares the
// module); the implementation follows the same small-struct, explicit-Init style as
// BumpAllocator and the teacher's layered controllers.
type BuddyAllocator struct {
	mu sync.Mutex

	pmm      *PMM
	freeList [maxOrder + 1][]Frame // freeList[order] holds free block base frames at that order
}

// NewBuddyAllocator creates a buddy allocator drawing frames from pmm.
func NewBuddyAllocator(pmm *PMM) *BuddyAllocator {
	return &BuddyAllocator{pmm: pmm}
}

func orderFor(numPages uint64) int {
	if numPages <= 1 {
		return 0
	}

	return bits.Len64(numPages - 1)
}

// AllocPages allocates a block of numPages contiguous pages, rounded up to the next power of two,
// splitting a larger free block if no exact-order block is available.
func (b *BuddyAllocator) AllocPages(numPages uint64) (Frame, error) {
	order := orderFor(numPages)
	if order > maxOrder {
		return 0, newError("AllocPages", kindInvalidParameter, 0)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	base, err := b.allocOrder(order)
	if err != nil {
		return 0, err
	}

	return base, nil
}

// allocOrder must be called with b.mu held.
func (b *BuddyAllocator) allocOrder(order int) (Frame, error) {
	if len(b.freeList[order]) > 0 {
		n := len(b.freeList[order]) - 1
		f := b.freeList[order][n]
		b.freeList[order] = b.freeList[order][:n]

		return f, nil
	}

	if order == maxOrder {
		// Refill the top order directly from the PMM with one aligned run of 2^maxOrder
		// contiguous frames, so every page of the block is reserved in the PMM.
		f, err := b.pmm.AllocContiguous(ZoneNormal, 1<<maxOrder, 1<<maxOrder)
		if err != nil {
			return 0, err
		}

		return f, nil
	}

	parent, err := b.allocOrder(order + 1)
	if err != nil {
		return 0, err
	}

	buddy := Frame(uint64(parent) + (1 << order))
	b.freeList[order] = append(b.freeList[order], buddy)

	return parent, nil
}

// FreePages releases a block of numPages pages previously returned by AllocPages, coalescing with
// its buddy when the buddy is also free.
func (b *BuddyAllocator) FreePages(base Frame, numPages uint64) error {
	order := orderFor(numPages)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.freeOrder(base, order)

	return nil
}

// freeOrder must be called with b.mu held.
func (b *BuddyAllocator) freeOrder(base Frame, order int) {
	if order >= maxOrder {
		b.freeList[maxOrder] = append(b.freeList[maxOrder], base)
		return
	}

	buddy := buddyOf(base, order)
	list := b.freeList[order]

	for i, f := range list {
		if f == buddy {
			b.freeList[order] = append(list[:i], list[i+1:]...)
			parent := base
			if buddy < base {
				parent = buddy
			}

			b.freeOrder(parent, order+1)

			return
		}
	}

	b.freeList[order] = append(b.freeList[order], base)
}

// buddyOf returns the address of the buddy block for base at the given order.
func buddyOf(base Frame, order int) Frame {
	return Frame(uint64(base) ^ (1 << order))
}
