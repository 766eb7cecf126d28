package syscall

// UserMemory is the narrow capability handlers use to pull variable-length data (names, buffers,
// structs) out of the calling process's address space. spec.md §4.7 assigns each handler
// responsibility for validating the user pointer itself; this interface is where that validation
// happens, with ErrBadAddress returned for anything outside the caller's mapped range.
type UserMemory interface {
	ReadString(addr uint64, maxLen int) (string, error)
	ReadBytes(addr uint64, length int) ([]byte, error)
	WriteBytes(addr uint64, data []byte) error
}
