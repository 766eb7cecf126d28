package syscall

import "github.com/redstone-os/redstone/internal/kobject"

// HandleOps resolves the calling task's handle table; internal/kernel supplies the concrete
// implementation (one table per task).
type HandleOps interface {
	HandleTableFor(taskID uint64) *kobject.HandleTable
}

// RegisterHandle installs the Handle family (0x20-0x2F) into t.
func RegisterHandle(t *Table, ops HandleOps) {
	t.Register(SysHandleDup, func(a Args) (uint64, error) {
		table := ops.HandleTableFor(a.Arg1)
		if table == nil {
			return 0, NewError("handle_dup", ErrBadHandle)
		}

		h, ok := table.Dup(kobject.Handle(a.Arg2), kobject.Rights(a.Arg3))
		if !ok {
			return 0, NewError("handle_dup", ErrInsufficientRights)
		}

		return uint64(h), nil
	})

	t.Register(SysHandleClose, func(a Args) (uint64, error) {
		table := ops.HandleTableFor(a.Arg1)
		if table == nil {
			return 0, NewError("handle_close", ErrBadHandle)
		}

		if !table.Close(kobject.Handle(a.Arg2)) {
			return 0, NewError("handle_close", ErrBadHandle)
		}

		return 0, nil
	})

	t.Register(SysHandleCheckRights, func(a Args) (uint64, error) {
		table := ops.HandleTableFor(a.Arg1)
		if table == nil {
			return 0, NewError("handle_check_rights", ErrBadHandle)
		}

		_, rights, ok := table.Get(kobject.Handle(a.Arg2))
		if !ok {
			return 0, NewError("handle_check_rights", ErrBadHandle)
		}

		want := kobject.Rights(a.Arg3)
		if !rights.Contains(want) {
			return 0, NewError("handle_check_rights", ErrInsufficientRights)
		}

		return uint64(rights), nil
	})
}
