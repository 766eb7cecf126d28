package kernel

import (
	"github.com/redstone-os/redstone/internal/extiface"
	"github.com/redstone-os/redstone/internal/kobject"
)

// vfsHandleObject adapts an extiface.VFSHandle into a kobject.Object so it can live behind a
// Handle in a task's table the same way a Port or a Task does.
type vfsHandleObject struct {
	koid kobject.KOID
	h    extiface.VFSHandle
}

func newVFSHandleObject(h extiface.VFSHandle) *vfsHandleObject {
	return &vfsHandleObject{koid: kobject.GenerateKOID(), h: h}
}

func (v *vfsHandleObject) KOID() kobject.KOID { return v.koid }
func (v *vfsHandleObject) TypeName() string   { return "vfs-handle" }
func (v *vfsHandleObject) OnFinalRelease()    { _ = v.h.Close() }

// Root implements syscall.FSOps.
func (k *Kernel) Root() extiface.VFSNode {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.RootFS
}

// InstallHandle implements syscall.FSOps, installing h in taskID's handle table with full rights
// over the open file.
func (k *Kernel) InstallHandle(taskID uint64, h extiface.VFSHandle) kobject.Handle {
	table := k.HandleTableFor(taskID)
	if table == nil {
		return kobject.InvalidHandle
	}

	return kobject.Handle(table.Alloc(kobject.NewDispatcher(newVFSHandleObject(h)), kobject.RightRead|kobject.RightWrite|kobject.RightDestroy))
}

// HandleByFD implements syscall.FSOps.
func (k *Kernel) HandleByFD(taskID uint64, fd kobject.Handle) (extiface.VFSHandle, bool) {
	table := k.HandleTableFor(taskID)
	if table == nil {
		return nil, false
	}

	disp, _, ok := table.Get(fd)
	if !ok {
		return nil, false
	}

	obj, ok := disp.Object().(*vfsHandleObject)
	if !ok {
		return nil, false
	}

	return obj.h, true
}

// CloseFD implements syscall.FSOps.
func (k *Kernel) CloseFD(taskID uint64, fd kobject.Handle) bool {
	table := k.HandleTableFor(taskID)
	if table == nil {
		return false
	}

	return table.Close(fd)
}
