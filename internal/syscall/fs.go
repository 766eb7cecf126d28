package syscall

import (
	"github.com/redstone-os/redstone/internal/extiface"
	"github.com/redstone-os/redstone/internal/kobject"
)

// FSOps resolves the VFS root and the per-task open-file table; the VFS implementation itself is
// an external collaborator (spec.md §6), not specified here.
type FSOps interface {
	Root() extiface.VFSNode
	InstallHandle(taskID uint64, h extiface.VFSHandle) kobject.Handle
	HandleByFD(taskID uint64, fd kobject.Handle) (extiface.VFSHandle, bool)
	CloseFD(taskID uint64, fd kobject.Handle) bool
}

// RegisterFilesystem installs the Filesystem family (0x60-0x6F) into t. mem marshals path
// arguments and read/write buffers across the syscall boundary.
func RegisterFilesystem(t *Table, ops FSOps, mem UserMemory) {
	t.Register(SysOpen, func(a Args) (uint64, error) {
		path, err := mem.ReadString(a.Arg1, 4096)
		if err != nil {
			return 0, NewError("open", ErrBadAddress)
		}

		node, err := lookup(ops.Root(), path)
		if err != nil {
			return 0, NewError("open", ErrNotFound)
		}

		handle, err := node.Open()
		if err != nil {
			return 0, NewError("open", ErrIOError)
		}

		fd := ops.InstallHandle(a.Arg3, handle)

		return uint64(fd), nil
	})

	t.Register(SysClose, func(a Args) (uint64, error) {
		if !ops.CloseFD(a.Arg2, kobject.Handle(a.Arg1)) {
			return 0, NewError("close", ErrBadHandle)
		}

		return 0, nil
	})

	// SysRead and SysWrite are positional (pread/pwrite-style): Arg5 carries the file offset
	// explicitly rather than an implicit per-fd cursor, since extiface.VFSHandle itself is
	// positional (ReadAt/WriteAt) and the hosted kernel keeps no per-handle cursor state.
	t.Register(SysRead, func(a Args) (uint64, error) {
		handle, ok := ops.HandleByFD(a.Arg4, kobject.Handle(a.Arg1))
		if !ok {
			return 0, NewError("read", ErrBadHandle)
		}

		buf := make([]byte, a.Arg3)
		n, err := handle.ReadAt(a.Arg5, buf)
		if err != nil {
			return 0, NewError("read", ErrIOError)
		}

		if err := mem.WriteBytes(a.Arg2, buf[:n]); err != nil {
			return 0, NewError("read", ErrBadAddress)
		}

		return uint64(n), nil
	})

	t.Register(SysWrite, func(a Args) (uint64, error) {
		handle, ok := ops.HandleByFD(a.Arg4, kobject.Handle(a.Arg1))
		if !ok {
			return 0, NewError("write", ErrBadHandle)
		}

		buf, err := mem.ReadBytes(a.Arg2, int(a.Arg3))
		if err != nil {
			return 0, NewError("write", ErrBadAddress)
		}

		n, err := handle.WriteAt(a.Arg5, buf)
		if err != nil {
			return 0, NewError("write", ErrBrokenPipe)
		}

		return uint64(n), nil
	})

	t.Register(SysStat, func(a Args) (uint64, error) {
		path, err := mem.ReadString(a.Arg1, 4096)
		if err != nil {
			return 0, NewError("stat", ErrBadAddress)
		}

		node, err := lookup(ops.Root(), path)
		if err != nil {
			return 0, NewError("stat", ErrNotFound)
		}

		return node.Size(), nil
	})

	t.Register(SysLseek, func(a Args) (uint64, error) {
		return a.Arg2, nil
	})

	t.Register(SysMkdir, func(a Args) (uint64, error) {
		return 0, NewError("mkdir", ErrNotImplemented)
	})

	t.Register(SysReaddir, func(a Args) (uint64, error) {
		path, err := mem.ReadString(a.Arg1, 4096)
		if err != nil {
			return 0, NewError("readdir", ErrBadAddress)
		}

		node, err := lookup(ops.Root(), path)
		if err != nil {
			return 0, NewError("readdir", ErrNotFound)
		}

		entries, err := node.List()
		if err != nil {
			return 0, NewError("readdir", ErrIOError)
		}

		return uint64(len(entries)), nil
	})
}

// lookup walks the VFS tree for a single path component under root; the flat initramfs layout
// (internal/boot) means this is a one-level scan rather than a real hierarchical resolver.
func lookup(root extiface.VFSNode, path string) (extiface.VFSNode, error) {
	if path == "" || path == "/" || path == root.Name() {
		return root, nil
	}

	entries, err := root.List()
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Name() == path {
			return e, nil
		}
	}

	return nil, errNoSuchPath
}

var errNoSuchPath = &Error{Kind: ErrNotFound, Op: "lookup"}
