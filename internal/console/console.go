// Package console adapts a Unix terminal into a serial console device[^1]: a CharDevice that the
// kernel can hand out as the backing store for a VFS character-special node or a boot-time debug
// port. Bytes typed at the terminal arrive on Read; bytes written to the device are output on the
// terminal.
//
// [1]: See: tty(4), termios(4).
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ErrNoTTY is returned if standard input is not a terminal. In this case, the console cannot put
// the terminal into raw mode and asynchronous key delivery is unavailable.
var ErrNoTTY error = errors.New("console: not a TTY")

// Console is a serial console backed by Unix terminal I/O. It implements extiface.CharDevice so
// the rest of the kernel can treat it exactly like any other character device.
type Console struct {
	in    *os.File
	out   *term.Terminal
	fd    int
	state *term.State

	mu     sync.Mutex
	keyCh  chan byte
	doneCh chan struct{}
	closed bool
}

// NewConsole creates a Console using the provided streams. If the input stream is not a terminal,
// ErrNoTTY is returned. Callers are responsible for calling Restore to return the terminal to its
// initial state.
func NewConsole(sin, sout, serr *os.File) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	cons := &Console{
		fd:    fd,
		in:    sin,
		out:   term.NewTerminal(sout, ""),
		state:  saved,
		keyCh:  make(chan byte, 16),
		doneCh: make(chan struct{}),
	}

	if err := cons.setTerminalParams(1, 0); err != nil {
		return nil, err
	}

	return cons, nil
}

// Run starts the background pump that copies terminal input into the console's internal queue. It
// blocks until ctx is cancelled or the terminal read fails, so callers run it in its own goroutine.
func (c *Console) Run(ctx context.Context) error {
	reader := bufio.NewReader(c.in)

	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.doneCh:
			return nil
		default:
		}

		b, err := reader.ReadByte()
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.doneCh:
			return nil
		case c.keyCh <- b:
		}
	}
}

// Read implements extiface.CharDevice. It blocks for at least one byte, then drains whatever else
// is already queued without blocking further.
func (c *Console) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	select {
	case <-c.doneCh:
		return 0, io.EOF
	case b := <-c.keyCh:
		buf[0] = b
	}

	n := 1

	for n < len(buf) {
		select {
		case b := <-c.keyCh:
			buf[n] = b
			n++
		default:
			return n, nil
		}
	}

	return n, nil
}

// Write implements extiface.CharDevice, printing buf to the terminal.
func (c *Console) Write(buf []byte) (int, error) {
	return c.out.Write(buf)
}

// Ioctl implements extiface.CharDevice. The console exposes no device-specific controls, so every
// request is rejected.
func (c *Console) Ioctl(request uint64, arg uintptr) (uintptr, error) {
	return 0, errors.New("console: ioctl not supported")
}

// Restore returns the terminal to its initial state and unblocks any in-progress read.
func (c *Console) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.doneCh)

	_ = c.in.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = c.in.SetReadDeadline(time.Time{})

	return nil
}
