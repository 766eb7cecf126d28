package syscall

// Syscall numbers, grouped by family per spec.md §4.7's ABI-stable range table. The numbers
// themselves are part of the ABI contract with userspace and must never be renumbered once
// assigned.
const (
	// Process, 0x01-0x0F.
	SysExit uint64 = 0x01 + iota
	SysSpawn
	SysWait
	SysYield
	SysGetPID
	SysGetTID
	SysThreadCreate
	SysThreadExit
)

const (
	// Memory, 0x10-0x1F.
	SysMemAlloc uint64 = 0x10 + iota
	SysMemFree
	SysMemMap
	SysMemUnmap
	SysMemProtect
	SysMemAllocContig
	SysMemSplitHuge
)

const (
	// Handle, 0x20-0x2F.
	SysHandleDup uint64 = 0x20 + iota
	SysHandleClose
	SysHandleCheckRights
)

const (
	// IPC, 0x30-0x3F.
	SysPortCreate uint64 = 0x30 + iota
	SysPortSend
	SysPortRecv
	SysFutexWait
	SysFutexWake
	SysVmoCreate
	SysVmoMap
)

const (
	// Graphics/Input, 0x40-0x4F.
	SysFBInfo uint64 = 0x40 + iota
	SysFBWrite
	SysFBClear
	SysMouseRead
	SysKbdRead
)

const (
	// Time, 0x50-0x5F.
	SysClockGet uint64 = 0x50 + iota
	SysSleep
	SysTimerCreate
	SysTimerSet
)

const (
	// Filesystem, 0x60-0x6F.
	SysOpen uint64 = 0x60 + iota
	SysClose
	SysRead
	SysWrite
	SysStat
	SysLseek
	SysMkdir
	SysReaddir
)

const (
	// System, 0xF0-0xFF.
	SysInfo uint64 = 0xF0 + iota
	SysReboot
	SysPoweroff
	SysDebug
)

// TableSize is the fixed number of entries in the dispatch table (spec.md §4.7: "A fixed table
// of 256 entries indexed by syscall number").
const TableSize = 256
