package kobject

import (
	"sync"
)

// Handle is the value userspace sees: an index into its process's HandleTable packed with a
// generation counter, matching syscall/handle/table.rs's Handle(u32) = generation<<16 | index.
// The generation is bumped every time a slot is reused, so a stale Handle value left over after
// close+reuse fails lookup instead of silently addressing a different object.
type Handle uint32

// InvalidHandle is the reserved value meaning "no handle", matching Handle::INVALID (u32::MAX).
const InvalidHandle Handle = 0xFFFFFFFF

// NewHandle packs an index and generation into a Handle value.
func NewHandle(index, generation uint16) Handle {
	return Handle(uint32(generation)<<16 | uint32(index))
}

// Index returns the packed slot index.
func (h Handle) Index() uint16 {
	return uint16(h & 0xFFFF)
}

// Generation returns the packed generation counter.
func (h Handle) Generation() uint16 {
	return uint16(h >> 16)
}

// IsValid reports whether h is not the reserved InvalidHandle sentinel.
func (h Handle) IsValid() bool {
	return h != InvalidHandle
}

// entry is one slot in a HandleTable, matching syscall/handle/table.rs's HandleEntry: the
// dispatcher it names, the rights this particular handle grants, and the generation/in-use
// bookkeeping that invalidates stale Handle values after the slot is reused.
type entry struct {
	dispatcher *Dispatcher
	rights     Rights
	generation uint16
	inUse      bool
}

// DefaultTableCapacity is the number of handle slots a new process starts with, matching
// HandleTable::DEFAULT_CAPACITY.
const DefaultTableCapacity = 64

// HandleTable is the per-task table mapping Handle values to Dispatchers with associated Rights.
// Every syscall that takes a handle argument resolves it through its caller's HandleTable before
// touching the underlying object.
type HandleTable struct {
	mu      sync.Mutex
	entries []entry
}

// NewHandleTable creates a table with DefaultTableCapacity slots.
func NewHandleTable() *HandleTable {
	return NewHandleTableWithCapacity(DefaultTableCapacity)
}

// NewHandleTableWithCapacity creates a table with the given number of slots.
func NewHandleTableWithCapacity(capacity int) *HandleTable {
	return &HandleTable{entries: make([]entry, capacity)}
}

// Alloc installs a new handle pointing at dispatcher with the given rights, growing the table if
// every slot is in use, and acquires a reference on the dispatcher. It never returns
// InvalidHandle.
func (t *HandleTable) Alloc(dispatcher *Dispatcher, rights Rights) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if !t.entries[i].inUse {
			return t.install(i, dispatcher, rights)
		}
	}

	idx := len(t.entries)
	t.entries = append(t.entries, entry{})

	return t.install(idx, dispatcher, rights)
}

// install must be called with t.mu held.
func (t *HandleTable) install(idx int, dispatcher *Dispatcher, rights Rights) Handle {
	e := &t.entries[idx]
	e.dispatcher = dispatcher
	e.rights = rights
	e.generation++
	e.inUse = true

	dispatcher.acquire()

	return NewHandle(uint16(idx), e.generation)
}

// resolve must be called with t.mu held; it returns nil if h does not name a live entry.
func (t *HandleTable) resolve(h Handle) *entry {
	idx := int(h.Index())
	if idx < 0 || idx >= len(t.entries) {
		return nil
	}

	e := &t.entries[idx]
	if !e.inUse || e.generation != h.Generation() {
		return nil
	}

	return e
}

// Get returns the dispatcher and rights named by h, or ok=false if h is stale or unallocated.
func (t *HandleTable) Get(h Handle) (dispatcher *Dispatcher, rights Rights, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.resolve(h)
	if e == nil {
		return nil, 0, false
	}

	return e.dispatcher, e.rights, true
}

// Close releases h, dropping the table's reference to its dispatcher and invalidating h (and any
// copy of it) for future lookups by bumping the slot's generation on next reuse.
func (t *HandleTable) Close(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.resolve(h)
	if e == nil {
		return false
	}

	e.dispatcher.release()
	e.dispatcher = nil
	e.inUse = false

	return true
}

// Dup creates a new handle to the same object named by h, with rights narrowed to newRights. It
// fails if h lacks RightDuplicate or if newRights is not a subset of h's current rights — rights
// can only ever narrow, never widen, matching the original's can_reduce_to check.
func (t *HandleTable) Dup(h Handle, newRights Rights) (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.resolve(h)
	if e == nil {
		return InvalidHandle, false
	}

	if !e.rights.Contains(RightDuplicate) {
		return InvalidHandle, false
	}

	if !e.rights.CanReduceTo(newRights) {
		return InvalidHandle, false
	}

	dispatcher := e.dispatcher

	for i := range t.entries {
		if !t.entries[i].inUse {
			return t.install(i, dispatcher, newRights), true
		}
	}

	idx := len(t.entries)
	t.entries = append(t.entries, entry{})

	return t.install(idx, dispatcher, newRights), true
}
