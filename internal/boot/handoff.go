// Package boot models the bootloader-to-kernel handoff: the BootInfo structure the bootloader
// fills in before jumping to kernel entry, and the USTAR initramfs it points at, matching
// spec.md §6.
package boot

import "encoding/binary"

// Magic is the BootInfo signature the kernel validates on entry; a mismatch halts, per spec.md §6.
const Magic uint64 = 0x5245445354_4F4E45 // ASCII "REDSTONE", matching core/boot/handoff.rs.

// PixelFormat names the framebuffer's pixel layout.
type PixelFormat uint32

const (
	PixelRGB PixelFormat = iota
	PixelBGR
	PixelBitmask
	PixelBltOnly
)

// FramebufferInfo describes the boot-time linear framebuffer.
type FramebufferInfo struct {
	Addr   uint64
	Size   uint64
	Width  uint32
	Height uint32
	Stride uint32
	Format PixelFormat
}

// MemoryType classifies one MemoryMapEntry.
type MemoryType uint32

const (
	MemUsable MemoryType = iota + 1
	MemReserved
	MemAcpiReclaimable
	MemAcpiNvs
	MemBadMemory
	MemBootloaderReclaimable
	MemKernelAndModules
	MemFramebuffer
)

// MemoryMapEntry is one physical memory region, matching spec.md §6's layout exactly.
type MemoryMapEntry struct {
	Base uint64
	Len  uint64
	Type MemoryType
}

// BootInfo is the handoff structure the bootloader constructs and the kernel validates on entry.
// Field order and widths are layout-critical (spec.md §6); this struct does not get reordered or
// have fields inserted into its middle even if that would read more naturally, since a real build
// would lay this out with explicit padding to match the bootloader's ABI.
type BootInfo struct {
	Magic       uint64
	Version     uint32
	_           uint32 // explicit padding, matching the bootloader's repr(C) layout.
	Framebuffer FramebufferInfo

	MemoryMapAddr uint64
	MemoryMapLen  uint64

	RSDPAddr uint64

	KernelPhysBase uint64
	KernelSize     uint64

	InitramfsBase uint64
	InitramfsSize uint64

	InitialCR3 uint64
}

// Validate checks the magic number, matching spec.md §6: "The kernel validates magic on entry;
// any mismatch halts."
func (b *BootInfo) Validate() error {
	if b.Magic != Magic {
		return errBadMagic
	}

	return nil
}

var errBadMagic = &handoffError{"bad BootInfo magic"}

type handoffError struct{ msg string }

func (e *handoffError) Error() string { return e.msg }

// DecodeMemoryMap reinterprets a flat byte slice (what MemoryMapAddr/MemoryMapLen point at in a
// real boot) as a sequence of fixed-width, little-endian MemoryMapEntry records.
func DecodeMemoryMap(raw []byte) []MemoryMapEntry {
	const entrySize = 20 // 8 + 8 + 4 bytes.

	n := len(raw) / entrySize
	entries := make([]MemoryMapEntry, 0, n)

	for i := 0; i < n; i++ {
		e := raw[i*entrySize : (i+1)*entrySize]
		entries = append(entries, MemoryMapEntry{
			Base: binary.LittleEndian.Uint64(e[0:8]),
			Len:  binary.LittleEndian.Uint64(e[8:16]),
			Type: MemoryType(binary.LittleEndian.Uint32(e[16:20])),
		})
	}

	return entries
}
