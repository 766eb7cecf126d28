package kernel

import (
	"errors"

	"github.com/redstone-os/redstone/internal/mm"
)

// errBadAddress is returned when a user virtual address cannot be backed: faultIn found no free
// frame or could not map one, or a framebuffer write fell outside the framebuffer.
var errBadAddress = errors.New("kernel: unmapped user address")

// frameStorage backs frame f with PageSize bytes of simulated RAM, allocating them lazily. A real
// kernel never needs this: physical RAM already exists at every valid frame number. The hosted
// simulation's mm.PMM only tracks which frames are free, not their contents, so this is the seam
// that gives mapped pages somewhere to actually store bytes.
func (k *Kernel) frameStorage(f mm.Frame) []byte {
	k.mu.Lock()
	defer k.mu.Unlock()

	if int(f) >= len(k.physMem) {
		grown := make([][]byte, int(f)+1)
		copy(grown, k.physMem)
		k.physMem = grown
	}

	if k.physMem[f] == nil {
		k.physMem[f] = make([]byte, mm.PageSize)
	}

	return k.physMem[f]
}

// faultIn resolves page in as to its backing frame, transparently satisfying the page fault by
// allocating and mapping a fresh zero frame when page has no mapping yet, matching spec.md §7's
// "page faults that can be satisfied by allocating a frame are recovered transparently" policy —
// the same zero-fill-on-first-touch behavior a real demand-paged anonymous mapping gives a process
// touching memory it has reserved but never written.
func (k *Kernel) faultIn(as *mm.AddressSpace, page mm.Addr) (mm.Frame, error) {
	if frame, _, err := k.VMM.Translate(as, page); err == nil {
		return frame, nil
	}

	frame, err := k.PMM.AllocFrame(mm.ZoneNormal)
	if err != nil {
		return 0, errBadAddress
	}

	if err := k.VMM.Map(as, page, frame, mm.Present|mm.Writable|mm.User); err != nil {
		return 0, errBadAddress
	}

	return frame, nil
}

// readPhys reads length bytes starting at the user virtual address addr in as, translating
// through as many pages as the read spans.
func (k *Kernel) readPhys(as *mm.AddressSpace, addr uint64, length int) ([]byte, error) {
	out := make([]byte, 0, length)

	for len(out) < length {
		page := mm.Addr(addr) - mm.Addr(addr)%mm.PageSize
		pageOff := int(mm.Addr(addr) % mm.PageSize)

		frame, err := k.faultIn(as, page)
		if err != nil {
			return nil, err
		}

		storage := k.frameStorage(frame)

		n := length - len(out)
		if room := mm.PageSize - pageOff; n > room {
			n = room
		}

		out = append(out, storage[pageOff:pageOff+n]...)
		addr += uint64(n)
	}

	return out, nil
}

// writePhys writes data starting at the user virtual address addr in as, across as many pages as
// it spans.
func (k *Kernel) writePhys(as *mm.AddressSpace, addr uint64, data []byte) error {
	written := 0

	for written < len(data) {
		page := mm.Addr(addr) - mm.Addr(addr)%mm.PageSize
		pageOff := int(mm.Addr(addr) % mm.PageSize)

		frame, err := k.faultIn(as, page)
		if err != nil {
			return err
		}

		storage := k.frameStorage(frame)

		n := len(data) - written
		if room := mm.PageSize - pageOff; n > room {
			n = room
		}

		copy(storage[pageOff:pageOff+n], data[written:written+n])
		written += n
		addr += uint64(n)
	}

	return nil
}

// currentAddressSpace resolves the address space a bare (no-taskID) UserMemory call operates
// against: the one belonging to whichever task the scheduler is presently running, matching the
// ABI convention that a syscall always acts on behalf of its caller.
func (k *Kernel) currentAddressSpace() *mm.AddressSpace {
	task := k.Sched.Current()
	if task == nil {
		return k.KernelAS
	}

	if as := k.AddressSpaceFor(task.AddressSpaceID); as != nil {
		return as
	}

	return k.KernelAS
}

// ReadString implements syscall.UserMemory.
func (k *Kernel) ReadString(addr uint64, maxLen int) (string, error) {
	buf, err := k.readPhys(k.currentAddressSpace(), addr, maxLen)
	if err != nil {
		return "", err
	}

	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}

	return string(buf), nil
}

// ReadBytes implements syscall.UserMemory.
func (k *Kernel) ReadBytes(addr uint64, length int) ([]byte, error) {
	return k.readPhys(k.currentAddressSpace(), addr, length)
}

// WriteBytes implements syscall.UserMemory.
func (k *Kernel) WriteBytes(addr uint64, data []byte) error {
	return k.writePhys(k.currentAddressSpace(), addr, data)
}
