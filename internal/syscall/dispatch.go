package syscall

import (
	"fmt"

	"github.com/redstone-os/redstone/internal/log"
)

// Table is a fixed 256-entry syscall dispatch table indexed by syscall number, matching spec.md
// §4.7. Unregistered slots fail every call with ErrNotImplemented rather than panicking, since an
// unknown syscall number is ordinary (if hostile) user input, not a kernel bug.
type Table struct {
	handlers [TableSize]Handler
	logger   *log.Logger
}

// NewTable creates an empty dispatch table. Register family handlers with Register before calling
// Dispatch.
func NewTable(logger *log.Logger) *Table {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	return &Table{logger: logger}
}

// Register installs handler at num, overwriting whatever was there before. Callers normally do
// this once at boot, per family (see the process/memory/handle/ipc handler constructors in this
// package).
func (t *Table) Register(num uint64, handler Handler) {
	if num >= TableSize {
		panic(fmt.Sprintf("syscall: number %#x exceeds table size %d", num, TableSize))
	}

	t.handlers[num] = handler
}

// Dispatch extracts no further state from args than the handler itself does; it looks up the
// handler for args.Num, invokes it, and converts the result into the signed register value the
// trap return path writes back. A missing handler returns the negated ErrNotImplemented code,
// exactly as spec.md §4.7 specifies for unregistered slots.
func (t *Table) Dispatch(args Args) int64 {
	if args.Num >= TableSize || t.handlers[args.Num] == nil {
		t.logger.Warn("syscall: unregistered number", "num", args.Num)
		return ResultToRegister(0, NewError("dispatch", ErrNotImplemented))
	}

	value, err := t.handlers[args.Num](args)
	if err != nil {
		t.logger.Debug("syscall: handler error", "num", args.Num, "err", err)
	}

	return ResultToRegister(value, err)
}
