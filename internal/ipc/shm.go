package ipc

import (
	"sync"

	"github.com/redstone-os/redstone/internal/kobject"
	"github.com/redstone-os/redstone/internal/mm"
)

// SharedMemory is a VMO (virtual-memory object) whose backing frames are shared zero-copy
// between every address space that maps it, matching spec.md §4.6's shared-memory model: its
// frames are allocated up front by NewSharedMemory, and the region is destroyed when the last handle referencing it
// drops (wired through kobject.Dispatcher's refcounting, not a bespoke counter here).
type SharedMemory struct {
	koid kobject.KOID

	mu     sync.Mutex
	frames []mm.Frame
	pmm    *mm.PMM
}

// NewSharedMemory creates a region of the given size in bytes, allocating its backing frames
// immediately (this simulation does not implement faulting zero-fill-on-demand; the frames are
// allocated zeroed up front, which is observably equivalent for a reader that never inspects
// physical reuse history).
func NewSharedMemory(pmm *mm.PMM, size uint64) (*SharedMemory, error) {
	numPages := (size + mm.PageSize - 1) / mm.PageSize

	shm := &SharedMemory{koid: kobject.GenerateKOID(), pmm: pmm}

	for i := uint64(0); i < numPages; i++ {
		f, err := pmm.AllocFrame(mm.ZoneNormal)
		if err != nil {
			shm.freeAll()
			return nil, err
		}

		shm.frames = append(shm.frames, f)
	}

	return shm, nil
}

func (s *SharedMemory) KOID() kobject.KOID { return s.koid }
func (s *SharedMemory) TypeName() string   { return "shared-memory" }

// OnFinalRelease frees every backing frame once the last handle to this region is dropped,
// matching "a region is destroyed when the last handle drops" from spec.md §4.6.
func (s *SharedMemory) OnFinalRelease() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.freeAll()
}

func (s *SharedMemory) freeAll() {
	for _, f := range s.frames {
		_ = s.pmm.FreeFrame(f)
	}

	s.frames = nil
}

// Map installs this region's frames into the given address space starting at page, with
// permission bits derived from the rights the caller's handle carries: Write requires
// kobject.RightWrite, and the caller's access is rejected entirely without kobject.RightMap.
func (s *SharedMemory) Map(vmm *mm.VMM, as *mm.AddressSpace, page mm.Addr, rights kobject.Rights) error {
	if !rights.Contains(kobject.RightMap) {
		return mm.ErrInvalidParameter
	}

	flags := mm.Present | mm.User
	if rights.Contains(kobject.RightWrite) {
		flags |= mm.Writable
	}

	s.mu.Lock()
	frames := append([]mm.Frame(nil), s.frames...)
	s.mu.Unlock()

	for i, f := range frames {
		if err := vmm.Map(as, page+mm.Addr(i)*mm.PageSize, f, flags); err != nil {
			return err
		}
	}

	return nil
}

// NumFrames reports how many physical frames back this region, for diagnostics and tests.
func (s *SharedMemory) NumFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.frames)
}
