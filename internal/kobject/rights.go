package kobject

// Rights is a 32-bit capability bitmask, ported bit for bit from core/object/rights.rs. A Handle
// can only ever be duplicated into one with an equal or narrower Rights set (see HandleTable.Dup);
// rights are never widened after a handle is created.
type Rights uint32

const RightNone Rights = 0

const (
	RightDuplicate Rights = 1 << iota
	RightTransfer
	RightRead
	RightWrite
	RightExecute
	RightMap
	RightGetProperty
	RightSetProperty
	RightEnumerate
	RightDestroy
)

// RightsAll grants every defined right, matching the original's Rights::ALL (0xFFFFFFFF), used
// for the kernel's own handles and as the starting point callers narrow down from.
const RightsAll Rights = 0xFFFFFFFF

// Contains reports whether r holds every right set in other.
func (r Rights) Contains(other Rights) bool {
	return r&other == other
}

// Union returns the rights present in either r or other.
func (r Rights) Union(other Rights) Rights {
	return r | other
}

// Intersection returns the rights present in both r and other.
func (r Rights) Intersection(other Rights) Rights {
	return r & other
}

// CanReduceTo reports whether other is a subset of r, i.e. whether a handle with rights r may be
// duplicated into one with rights other. Matches HandleRights::can_reduce_to in the original.
func (r Rights) CanReduceTo(other Rights) bool {
	return other&^r == 0
}
