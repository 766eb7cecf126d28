package syscall

import "github.com/redstone-os/redstone/internal/boot"

// GfxOps is the narrow surface the graphics/input family needs: the boot-time framebuffer
// descriptor and the char-device-backed input queues, matching spec.md §6's FramebufferInfo and
// the CharDevice capability for mouse/keyboard.
type GfxOps interface {
	Framebuffer() boot.FramebufferInfo
	WriteFramebuffer(offset uint64, pixels []byte) error
	ClearFramebuffer(color uint32) error
	ReadMouse() (dx, dy int32, buttons uint8, ok bool)
	ReadKeyboard() (scancode uint8, ok bool)
}

// RegisterGraphicsInput installs the Graphics/Input family (0x40-0x4F) into t.
func RegisterGraphicsInput(t *Table, ops GfxOps, mem UserMemory) {
	t.Register(SysFBInfo, func(a Args) (uint64, error) {
		fb := ops.Framebuffer()

		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(fb.Size >> (8 * i))
		}

		if err := mem.WriteBytes(a.Arg1, buf); err != nil {
			return 0, NewError("fb_info", ErrBadAddress)
		}

		return fb.Addr, nil
	})

	t.Register(SysFBWrite, func(a Args) (uint64, error) {
		pixels, err := mem.ReadBytes(a.Arg2, int(a.Arg3))
		if err != nil {
			return 0, NewError("fb_write", ErrBadAddress)
		}

		if err := ops.WriteFramebuffer(a.Arg1, pixels); err != nil {
			return 0, NewError("fb_write", ErrIOError)
		}

		return 0, nil
	})

	t.Register(SysFBClear, func(a Args) (uint64, error) {
		if err := ops.ClearFramebuffer(uint32(a.Arg1)); err != nil {
			return 0, NewError("fb_clear", ErrIOError)
		}

		return 0, nil
	})

	t.Register(SysMouseRead, func(a Args) (uint64, error) {
		dx, dy, buttons, ok := ops.ReadMouse()
		if !ok {
			return 0, NewError("mouse_read", ErrWouldBlock)
		}

		packed := uint64(uint32(dx))<<32 | uint64(uint32(dy))<<8 | uint64(buttons)

		return packed, nil
	})

	t.Register(SysKbdRead, func(a Args) (uint64, error) {
		scancode, ok := ops.ReadKeyboard()
		if !ok {
			return 0, NewError("kbd_read", ErrWouldBlock)
		}

		return uint64(scancode), nil
	})
}
