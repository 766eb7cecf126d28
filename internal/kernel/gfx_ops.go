package kernel

import (
	"context"
	"sync"

	"github.com/redstone-os/redstone/internal/boot"
	"github.com/redstone-os/redstone/internal/extiface"
)

// mouseEvent is one queued relative-motion sample.
type mouseEvent struct {
	dx, dy  int32
	buttons uint8
}

// Framebuffer is the hosted stand-in for the boot-time linear framebuffer: a byte buffer sized to
// match the boot.FramebufferInfo the bootloader handed off, plus the input queues a real machine
// would feed from PS/2 or USB HID interrupts.
type Framebuffer struct {
	mu   sync.Mutex
	info boot.FramebufferInfo
	data []byte

	mouseQueue []mouseEvent
	keyQueue   []byte
}

func newFramebuffer(info boot.FramebufferInfo) *Framebuffer {
	return &Framebuffer{info: info, data: make([]byte, info.Size)}
}

// PushMouse enqueues a mouse sample, to be drained by the SysMouseRead handler. Intended for use
// by whatever input backend (internal/console, a test harness) stands in for a real HID driver.
func (f *Framebuffer) PushMouse(dx, dy int32, buttons uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mouseQueue = append(f.mouseQueue, mouseEvent{dx: dx, dy: dy, buttons: buttons})
}

// PushKey enqueues a raw scancode, to be drained by the SysKbdRead handler.
func (f *Framebuffer) PushKey(scancode byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keyQueue = append(f.keyQueue, scancode)
}

// Framebuffer implements syscall.GfxOps.
func (k *Kernel) Framebuffer() boot.FramebufferInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.Gfx.info
}

// WriteFramebuffer implements syscall.GfxOps.
func (k *Kernel) WriteFramebuffer(offset uint64, pixels []byte) error {
	fb := k.Gfx

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if offset >= uint64(len(fb.data)) {
		return errBadAddress
	}

	copy(fb.data[offset:], pixels)

	return nil
}

// ClearFramebuffer implements syscall.GfxOps, filling every byte of the framebuffer with the low
// byte of color (the hosted simulation has no real pixel-format conversion to perform).
func (k *Kernel) ClearFramebuffer(color uint32) error {
	fb := k.Gfx

	fb.mu.Lock()
	defer fb.mu.Unlock()

	fill := byte(color)
	for i := range fb.data {
		fb.data[i] = fill
	}

	return nil
}

// ReadMouse implements syscall.GfxOps.
func (k *Kernel) ReadMouse() (dx, dy int32, buttons uint8, ok bool) {
	fb := k.Gfx

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if len(fb.mouseQueue) == 0 {
		return 0, 0, 0, false
	}

	ev := fb.mouseQueue[0]
	fb.mouseQueue = fb.mouseQueue[1:]

	return ev.dx, ev.dy, ev.buttons, true
}

// PumpCharDevice copies bytes read from dev into the keyboard scancode queue until ctx is
// cancelled or the device read fails. It lets any extiface.CharDevice (a real terminal via
// internal/console, a test double) stand in for the PS/2 or USB HID input path spec.md §6 leaves
// to an external collaborator.
func (k *Kernel) PumpCharDevice(ctx context.Context, dev extiface.CharDevice) error {
	buf := make([]byte, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := dev.Read(buf)
		if err != nil {
			return err
		}

		if n > 0 {
			k.Gfx.PushKey(buf[0])
		}
	}
}

// ReadKeyboard implements syscall.GfxOps.
func (k *Kernel) ReadKeyboard() (scancode uint8, ok bool) {
	fb := k.Gfx

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if len(fb.keyQueue) == 0 {
		return 0, false
	}

	scancode = fb.keyQueue[0]
	fb.keyQueue = fb.keyQueue[1:]

	return scancode, true
}
