package syscall

import (
	"encoding/binary"
	"errors"

	"github.com/redstone-os/redstone/internal/ipc"
	"github.com/redstone-os/redstone/internal/kobject"
)

// IPCOps resolves handles to the live ipc.Port (or other port-backed object) and futex registry
// a task is operating against; internal/kernel supplies the concrete implementation. Block/Wake
// drive the calling task's sched.Task.State so a blocking port or futex call is actually visible
// as StateBlocked while it waits, matching spec.md §8 scenario 5. HandleOps is embedded so
// SysPortSend/SysPortRecv can resolve and install the handles a message carries across processes,
// matching spec.md §8 scenario 2.
type IPCOps interface {
	HandleOps

	PortFor(taskID uint64, h kobject.Handle) (*ipc.Port, kobject.Rights, bool)
	InstallPort(taskID uint64, p *ipc.Port, rights kobject.Rights) kobject.Handle
	Futex() *ipc.Futex
	LoadWord(taskID uint64, addr uint64) (uint32, error)
	Block(taskID uint64)
	Wake(taskID uint64)

	// CreateVMO allocates a fresh shared-memory region of size bytes, matching spec.md §4.6's
	// VMO model.
	CreateVMO(size uint64) (*ipc.SharedMemory, error)

	// MapVMO maps shm into taskID's address space starting at page, with permissions derived
	// from rights.
	MapVMO(taskID uint64, shm *ipc.SharedMemory, page uint64, rights kobject.Rights) error
}

// hooksFor builds the BlockHooks that mirror a blocking IPC call into taskID's scheduler state.
func hooksFor(ops IPCOps, taskID uint64) *ipc.BlockHooks {
	return &ipc.BlockHooks{
		OnBlock: func() { ops.Block(taskID) },
		OnWake:  func() { ops.Wake(taskID) },
	}
}

// RegisterIPC installs the IPC family (0x30-0x3F) into t. mem resolves the message payload
// argument to SysPortSend out of the caller's address space.
func RegisterIPC(t *Table, ops IPCOps, mem UserMemory) {
	t.Register(SysPortCreate, func(a Args) (uint64, error) {
		capacity := int(a.Arg1)
		rights := kobject.Rights(a.Arg2)

		p := ipc.NewPort(capacity)
		h := ops.InstallPort(a.Arg3, p, rights)

		return uint64(h), nil
	})

	t.Register(SysPortSend, func(a Args) (uint64, error) {
		port, rights, ok := ops.PortFor(a.Arg1, kobject.Handle(a.Arg2))
		if !ok {
			return 0, NewError("port_send", ErrBadHandle)
		}

		if !rights.Contains(kobject.RightWrite) {
			return 0, NewError("port_send", ErrInsufficientRights)
		}

		payload, err := mem.ReadBytes(a.Arg3, int(a.Arg4))
		if err != nil {
			return 0, NewError("port_send", ErrBadAddress)
		}

		msg := ipc.Message{Payload: payload}

		// Arg6, if nonzero, names a handle in the sender's own table to attach to the message.
		// The handle is moved, not duplicated: it is closed in the sender's table on successful
		// attach, matching a real handle-transfer's move semantics.
		if a.Arg6 != 0 {
			table := ops.HandleTableFor(a.Arg1)
			if table == nil {
				return 0, NewError("port_send", ErrBadHandle)
			}

			disp, hrights, ok := table.Get(kobject.Handle(a.Arg6))
			if !ok {
				return 0, NewError("port_send", ErrBadHandle)
			}

			table.Close(kobject.Handle(a.Arg6))
			msg.Handles = []ipc.HandleTransfer{{Dispatcher: disp, Rights: hrights}}
		}

		nonblock := a.Arg5 != 0

		if err := port.Send(msg, nonblock, hooksFor(ops, a.Arg1)); err != nil {
			return 0, mapIPCError("port_send", err)
		}

		return 0, nil
	})

	t.Register(SysPortRecv, func(a Args) (uint64, error) {
		port, rights, ok := ops.PortFor(a.Arg1, kobject.Handle(a.Arg2))
		if !ok {
			return 0, NewError("port_recv", ErrBadHandle)
		}

		if !rights.Contains(kobject.RightRead) {
			return 0, NewError("port_recv", ErrInsufficientRights)
		}

		nonblock := a.Arg5 != 0

		msg, err := port.Recv(nonblock, hooksFor(ops, a.Arg1))
		if err != nil {
			return 0, mapIPCError("port_recv", err)
		}

		if err := mem.WriteBytes(a.Arg3, msg.Payload); err != nil {
			return 0, NewError("port_recv", ErrBadAddress)
		}

		// Arg4, if nonzero, is the address of a handle-sized word to write the first transferred
		// handle's value into, once installed in the receiver's own table.
		if a.Arg4 != 0 && len(msg.Handles) > 0 {
			table := ops.HandleTableFor(a.Arg1)
			if table == nil {
				return 0, NewError("port_recv", ErrBadHandle)
			}

			xfer := msg.Handles[0]
			h := table.Alloc(xfer.Dispatcher, xfer.Rights)

			if err := writeHandle(mem, a.Arg4, h); err != nil {
				return 0, NewError("port_recv", ErrBadAddress)
			}
		}

		return uint64(len(msg.Payload)), nil
	})

	t.Register(SysVmoCreate, func(a Args) (uint64, error) {
		table := ops.HandleTableFor(a.Arg1)
		if table == nil {
			return 0, NewError("vmo_create", ErrNotFound)
		}

		shm, err := ops.CreateVMO(a.Arg2)
		if err != nil {
			return 0, mapMMError("vmo_create", err)
		}

		rights := kobject.Rights(a.Arg3)
		h := table.Alloc(kobject.NewDispatcher(shm), rights)

		return uint64(h), nil
	})

	t.Register(SysVmoMap, func(a Args) (uint64, error) {
		table := ops.HandleTableFor(a.Arg1)
		if table == nil {
			return 0, NewError("vmo_map", ErrNotFound)
		}

		disp, rights, ok := table.Get(kobject.Handle(a.Arg2))
		if !ok {
			return 0, NewError("vmo_map", ErrBadHandle)
		}

		shm, ok := disp.Object().(*ipc.SharedMemory)
		if !ok {
			return 0, NewError("vmo_map", ErrHandleTypeMismatch)
		}

		if err := ops.MapVMO(a.Arg1, shm, a.Arg3, rights); err != nil {
			return 0, mapMMError("vmo_map", err)
		}

		return 0, nil
	})

	t.Register(SysFutexWait, func(a Args) (uint64, error) {
		addr := a.Arg1
		expected := uint32(a.Arg2)

		waited := ops.Futex().Wait(addr, expected, func() uint32 {
			v, err := ops.LoadWord(a.Arg3, addr)
			if err != nil {
				return expected + 1 // force a mismatch; the caller sees WouldBlock return.
			}

			return v
		}, hooksFor(ops, a.Arg3))

		if !waited {
			return 0, NewError("futex_wait", ErrWouldBlock)
		}

		return 0, nil
	})

	t.Register(SysFutexWake, func(a Args) (uint64, error) {
		addr := a.Arg1
		count := int(a.Arg2)

		n := ops.Futex().Wake(addr, count)

		return uint64(n), nil
	})
}

// writeHandle writes h as a little-endian uint32 at addr, the wire form a handle crosses the
// syscall boundary in.
func writeHandle(mem UserMemory, addr uint64, h kobject.Handle) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(h))

	return mem.WriteBytes(addr, buf)
}

func mapIPCError(op string, err error) error {
	switch {
	case errors.Is(err, ipc.ErrPortFull):
		return NewError(op, ErrPortFull)
	case errors.Is(err, ipc.ErrPortClosed):
		return NewError(op, ErrPortClosed)
	case errors.Is(err, ipc.ErrMessageTooLarge):
		return NewError(op, ErrMessageTooLarge)
	case errors.Is(err, ipc.ErrNoMessage):
		return NewError(op, ErrNoMessage)
	default:
		return NewError(op, ErrUnknown)
	}
}
