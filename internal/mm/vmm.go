package mm

import (
	"sync"
	"sync/atomic"

	"github.com/redstone-os/redstone/internal/arch"
)

// MapFlags are the per-page protection and attribute bits recognized by the VMM, ported bit for
// bit from mm/vmm/vmm.rs's MapFlags bitflags. EXECUTABLE is the original's internal control flag
// (page tables natively express "not executable" via NO_EXECUTE, not the reverse); it is kept
// here for parity with the original and interpreted as the absence of NoExecute.
type MapFlags uint64

const (
	Present MapFlags = 1 << iota
	Writable
	User
	WriteThrough
	NoCache
	Accessed
	Dirty
	HugePage
	Global
	Executable
)

// NoExecute is bit 63, matching the original's placement of the architectural NX bit.
const NoExecute MapFlags = 1 << 63

// entriesPerTable is the fan-out of one page-table level on x86_64 (512 8-byte entries per 4 KiB
// table), matching mm/vmm/vmm.rs's PageTable{entries: [u64; 512]}.
const entriesPerTable = 512

// PTE is one page-table entry: a physical frame number packed with MapFlags, matching the
// original's raw u64 entry format closely enough to exercise the same bit layout.
type PTE uint64

func newPTE(frame Frame, flags MapFlags) PTE {
	return PTE(uint64(frame)<<12) | PTE(flags)
}

// PageTable models one level of the four-level x86_64 paging hierarchy (PML4/PDPT/PD/PT). Unlike
// the original, which casts a raw physical page to this struct, the hosted simulation keeps
// PageTables as ordinary Go values reachable from VMM's map, since there is no real MMU walking
// them.
type PageTable struct {
	Entries [entriesPerTable]PTE
}

// AddressSpace is one process's (or the kernel's) top-level page table plus the PCID tag used to
// avoid a full TLB flush on context switch into it, matching arch/x86_64/vmm/pcid.rs's pairing of
// a PML4 root with a PCID.
type AddressSpace struct {
	mu   sync.Mutex
	root *PageTable
	pcid uint16

	// levels holds one single-entry table per mapped page, keyed by the page's virtual address;
	// the entry at index 0 is that page's PTE. Lookups are one map access, not a four-level walk.
	levels map[Addr]*PageTable
}

// PCID returns the address space's Process Context Identifier.
func (as *AddressSpace) PCID() uint16 {
	return as.pcid
}

// kernelCR3 is the CR3 value (here, just an AddressSpace pointer identity) recorded by
// SetKernelAddressSpace, matching mm/vmm/vmm.rs's KERNEL_CR3 atomic global. The hosted VMM only
// stores it; MapInTarget edits the target address space directly without switching into it.
var kernelCR3 atomic.Pointer[AddressSpace]

// VMM is the Virtual Memory Manager (C3): map/unmap/translate/protect over AddressSpaces, backed
// by a PMM for frame allocation, with an arch.Shootdown driver for cross-CPU TLB invalidation.
type VMM struct {
	pmm       *PMM
	shootdown *arch.Shootdown
	hhdmBase  Addr
	pcids     *PCIDAllocator
}

// NewVMM creates a VMM over the given PMM. hhdmBase is the virtual address at which the entire
// physical address space is linearly mapped, matching mm/hhdm.rs's HHDM_BASE.
func NewVMM(pmm *PMM, hhdmBase Addr, shootdown *arch.Shootdown) *VMM {
	return &VMM{pmm: pmm, hhdmBase: hhdmBase, shootdown: shootdown, pcids: NewPCIDAllocator(0)}
}

// NewAddressSpace creates an empty address space with a fresh root table and the given PCID. Most
// callers should prefer AllocAddressSpace, which assigns the PCID itself and handles reuse
// invalidation; NewAddressSpace is exposed directly for the kernel's own address space (PCID 0,
// never reclaimed) and for tests.
func (v *VMM) NewAddressSpace(pcid uint16) *AddressSpace {
	return &AddressSpace{
		root:   &PageTable{},
		pcid:   pcid,
		levels: make(map[Addr]*PageTable),
	}
}

// AllocAddressSpace creates a new address space with a round-robin-assigned PCID (arch/x86_64's
// tagged-TLB scheme), matching arch/x86_64/vmm/pcid.rs's allocator. If the assigned PCID had to be
// reclaimed from a still-live address space, every core's TLB is shot down first so none of them
// can still hold a translation tagged with that PCID from its previous owner.
func (v *VMM) AllocAddressSpace(numCores int32) *AddressSpace {
	pcid, reused := v.pcids.Alloc()

	if reused && v.shootdown != nil && numCores > 0 {
		v.shootdown.BroadcastAndAck(nil, numCores)
	}

	return v.NewAddressSpace(pcid)
}

// ReleaseAddressSpace returns as's PCID to the pool, for use once its owning task has exited and
// every mapping in it has been torn down.
func (v *VMM) ReleaseAddressSpace(as *AddressSpace) {
	v.pcids.Release(as.pcid)
}

// PCIDAllocator hands out PCIDs round-robin over a fixed space, tracking which are presently
// assigned so a wraparound reuse can be flagged for TLB invalidation instead of silently risking a
// stale translation, matching arch/x86_64/vmm/pcid.rs's allocate_pcid.
type PCIDAllocator struct {
	mu      sync.Mutex
	next    uint16
	maxPCID uint16
	inUse   map[uint16]bool
}

// maxPCIDDefault is the number of PCIDs x86_64's 12-bit PCID field can address.
const maxPCIDDefault = 4096

// NewPCIDAllocator creates an allocator over [1, maxPCID) (0 is reserved for the kernel's own
// address space, matching NewVMM's kernel-as setup). maxPCID of 0 uses maxPCIDDefault.
func NewPCIDAllocator(maxPCID uint16) *PCIDAllocator {
	if maxPCID == 0 {
		maxPCID = maxPCIDDefault
	}

	return &PCIDAllocator{next: 1, maxPCID: maxPCID, inUse: make(map[uint16]bool)}
}

// Alloc returns the next PCID in round-robin order. reused reports whether that slot was still
// marked in use by a previous allocation, meaning the caller must invalidate every stale TLB entry
// that might still carry it before handing the PCID to a new address space.
func (a *PCIDAllocator) Alloc() (pcid uint16, reused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pcid = a.next

	a.next++
	if a.next >= a.maxPCID {
		a.next = 1
	}

	reused = a.inUse[pcid]
	a.inUse[pcid] = true

	return pcid, reused
}

// Release marks pcid free for reuse.
func (a *PCIDAllocator) Release(pcid uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.inUse, pcid)
}

// MapInTarget maps a page into as, the same as Map, but named to make explicit at the call site
// that as need not be the calling task's own address space — e.g. a parent mapping a page
// directly into a child it just spawned, matching mm/vmm/vmm.rs's map_page_in_target.
func (v *VMM) MapInTarget(as *AddressSpace, page Addr, frame Frame, flags MapFlags) error {
	return v.Map(as, page, frame, flags)
}

// hugePageSize is the 2 MiB span a single PDE-level huge-page mapping covers on x86_64.
const hugePageSize = 512 * PageSize

// SplitHugePage replaces the single 2 MiB huge-page mapping at hugePage with 512 individual 4 KiB
// mappings over the same physically contiguous frames, matching mm/vmm/vmm.rs's split_huge_page.
// Callers use this when an operation needs page-granular protection (e.g. Protect on part of a
// region) on memory that was originally mapped huge.
func (v *VMM) SplitHugePage(as *AddressSpace, hugePage Addr) error {
	if hugePage%hugePageSize != 0 {
		return newError("SplitHugePage", kindInvalidAlignment, hugePage)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	key := pageKey(hugePage)

	table, ok := as.levels[key]
	if !ok {
		return newError("SplitHugePage", kindNotMapped, hugePage)
	}

	pte := table.Entries[0]
	if MapFlags(pte)&HugePage == 0 {
		return newError("SplitHugePage", kindHugeSplitFailed, hugePage)
	}

	baseFrame := Frame(uint64(pte) >> 12)
	flags := (MapFlags(pte) & 0xfff) &^ HugePage

	delete(as.levels, key)

	for i := Addr(0); i < hugePageSize/PageSize; i++ {
		sub := &PageTable{}
		sub.Entries[0] = newPTE(baseFrame+Frame(i), flags)
		as.levels[hugePage+i*PageSize] = sub
	}

	return nil
}

// SetKernelAddressSpace records as as the VMM's own "CR3", matching vmm::init's capture of the
// bootloader's CR3.
func (v *VMM) SetKernelAddressSpace(as *AddressSpace) {
	kernelCR3.Store(as)
}

// PhysToVirt implements the HHDM identity used by the kernel to reach any physical address
// without a dedicated mapping: phys_to_virt(p) = HHDM_BASE + p, per mm/hhdm.rs.
func (v *VMM) PhysToVirt(phys Addr) Addr {
	return v.hhdmBase + phys
}

// VirtToPhys is the inverse of PhysToVirt for addresses known to fall within the HHDM region.
func (v *VMM) VirtToPhys(virt Addr) (Addr, bool) {
	if virt < v.hhdmBase {
		return 0, false
	}

	return virt - v.hhdmBase, true
}

func pageKey(page Addr) Addr {
	return AlignDown(page, PageSize)
}

// Map installs a translation from the virtual page to the physical frame with the given flags.
// The page's table is an ordinary Go value; no frame is taken from the VMM's PMM for it or for any
// intermediate page-table level. Mapping an already-mapped page returns ErrAlreadyMapped.
func (v *VMM) Map(as *AddressSpace, page Addr, frame Frame, flags MapFlags) error {
	if page%PageSize != 0 {
		return newError("Map", kindInvalidAlignment, page)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	key := pageKey(page)
	if _, ok := as.levels[key]; ok {
		return newError("Map", kindAlreadyMapped, page)
	}

	table := &PageTable{}
	table.Entries[0] = newPTE(frame, flags|Present)
	as.levels[key] = table

	return nil
}

// Unmap removes the translation for page and issues a TLB shootdown so other cores stop using the
// stale mapping before the frame backing it is reused, matching spec.md §5's invariant that the
// initiator waits for every target's ack before freeing the frame.
func (v *VMM) Unmap(as *AddressSpace, page Addr, numCores int32) error {
	key := pageKey(page)

	as.mu.Lock()
	_, ok := as.levels[key]
	if ok {
		delete(as.levels, key)
	}
	as.mu.Unlock()

	if !ok {
		return newError("Unmap", kindNotMapped, page)
	}

	if v.shootdown != nil && numCores > 0 {
		v.shootdown.BroadcastAndAck([]uintptr{uintptr(page)}, numCores)
	}

	return nil
}

// Translate walks the address space's mapping for page and returns the backing frame and flags.
func (v *VMM) Translate(as *AddressSpace, page Addr) (Frame, MapFlags, error) {
	key := pageKey(page)

	as.mu.Lock()
	table, ok := as.levels[key]
	as.mu.Unlock()

	if !ok {
		return 0, 0, newError("Translate", kindNotMapped, page)
	}

	pte := table.Entries[0]
	frame := Frame(uint64(pte) >> 12)
	flags := MapFlags(pte) & 0xfff

	return frame, flags, nil
}

// Protect updates the flags on an existing mapping without changing its backing frame.
func (v *VMM) Protect(as *AddressSpace, page Addr, flags MapFlags) error {
	frame, _, err := v.Translate(as, page)
	if err != nil {
		return err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	key := pageKey(page)
	as.levels[key].Entries[0] = newPTE(frame, flags|Present)

	return nil
}
