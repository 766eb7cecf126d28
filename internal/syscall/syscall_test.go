package syscall_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/redstone-os/redstone/internal/kobject"
	"github.com/redstone-os/redstone/internal/mm"
	"github.com/redstone-os/redstone/internal/sched"
	"github.com/redstone-os/redstone/internal/syscall"
)

func TestDispatchUnregisteredSlotReturnsNotImplemented(t *testing.T) {
	table := syscall.NewTable(nil)

	ret := table.Dispatch(syscall.Args{Num: 0x01})
	if ret != -int64(syscall.ErrNotImplemented) {
		t.Fatalf("Dispatch() on unregistered slot = %d, want %d", ret, -int64(syscall.ErrNotImplemented))
	}
}

func TestResultToRegisterConvertsOkAndErr(t *testing.T) {
	if got := syscall.ResultToRegister(42, nil); got != 42 {
		t.Fatalf("ResultToRegister(42, nil) = %d, want 42", got)
	}

	err := syscall.NewError("op", syscall.ErrBadHandle)
	if got, want := syscall.ResultToRegister(0, err), -int64(syscall.ErrBadHandle); got != want {
		t.Fatalf("ResultToRegister(0, err) = %d, want %d", got, want)
	}
}

func TestErrorKindRangesStayWithinSpecBands(t *testing.T) {
	inRange := func(k syscall.ErrorKind, lo, hi int) bool {
		return int(k) >= lo && int(k) <= hi
	}

	if !inRange(syscall.ErrBadHandle, 16, 31) {
		t.Fatalf("ErrBadHandle = %d, want in [16,31]", syscall.ErrBadHandle)
	}

	if !inRange(syscall.ErrOutOfMemory, 32, 47) {
		t.Fatalf("ErrOutOfMemory = %d, want in [32,47]", syscall.ErrOutOfMemory)
	}

	if !inRange(syscall.ErrPortFull, 64, 79) {
		t.Fatalf("ErrPortFull = %d, want in [64,79]", syscall.ErrPortFull)
	}

	if !inRange(syscall.ErrNotImplemented, 240, 255) {
		t.Fatalf("ErrNotImplemented = %d, want in [240,255]", syscall.ErrNotImplemented)
	}
}

// fakeMemory is an in-process stand-in for a task's address space, used only to exercise
// handlers' UserMemory dependency without a real VMM-backed mapping.
type fakeMemory struct {
	mu   sync.Mutex
	data map[uint64][]byte
}

func newFakeMemory() *fakeMemory { return &fakeMemory{data: make(map[uint64][]byte)} }

func (m *fakeMemory) put(addr uint64, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[addr] = append([]byte(nil), b...)
}

func (m *fakeMemory) ReadString(addr uint64, maxLen int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[addr]
	if !ok {
		return "", errors.New("unmapped")
	}

	if len(b) > maxLen {
		b = b[:maxLen]
	}

	return string(b), nil
}

func (m *fakeMemory) ReadBytes(addr uint64, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[addr]
	if !ok {
		return nil, errors.New("unmapped")
	}

	if len(b) > length {
		b = b[:length]
	}

	return append([]byte(nil), b...), nil
}

func (m *fakeMemory) WriteBytes(addr uint64, data []byte) error {
	m.put(addr, data)
	return nil
}

// fakeProcessOps is a minimal ProcessOps backed by a real sched.Scheduler, enough to exercise
// RegisterProcess's handlers end to end.
type fakeProcessOps struct {
	mu      sync.Mutex
	sched   *sched.Scheduler
	tasks   map[sched.TaskID]*sched.Task
	nextID  sched.TaskID
	current *sched.Task
}

func newFakeProcessOps() *fakeProcessOps {
	idle := sched.NewTask(0, "idle", sched.PolicyRoundRobin, sched.PriorityIdle)
	s := sched.NewScheduler(idle, nil)

	ops := &fakeProcessOps{sched: s, tasks: map[sched.TaskID]*sched.Task{0: idle}, nextID: 1}
	ops.current = idle

	return ops
}

func (o *fakeProcessOps) CurrentTask() *sched.Task { return o.current }

func (o *fakeProcessOps) Exit(task *sched.Task, code int32) {
	task.State = sched.StateZombie
}

func (o *fakeProcessOps) Spawn(name string, policy sched.Policy, priority uint8) (*sched.Task, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++

	task := sched.NewTask(id, name, policy, priority)
	o.tasks[id] = task
	o.sched.Enqueue(task)

	return task, nil
}

func (o *fakeProcessOps) Wait(parent *sched.Task, child sched.TaskID) (int32, error) {
	if _, ok := o.tasks[child]; !ok {
		return 0, errors.New("no such task")
	}

	return 0, nil
}

func (o *fakeProcessOps) Yield() {}

func (o *fakeProcessOps) TaskByID(id sched.TaskID) (*sched.Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, ok := o.tasks[id]

	return task, ok
}

func TestRegisterProcessSpawnAndGetPID(t *testing.T) {
	table := syscall.NewTable(nil)
	ops := newFakeProcessOps()
	mem := newFakeMemory()

	syscall.RegisterProcess(table, ops, mem)

	mem.put(0x1000, []byte("worker"))

	ret := table.Dispatch(syscall.Args{Num: syscall.SysSpawn, Arg1: 0x1000, Arg3: uint64(sched.PolicyRoundRobin), Arg4: 100})
	if ret <= 0 {
		t.Fatalf("Dispatch(SysSpawn) = %d, want a positive task id", ret)
	}

	spawned, ok := ops.TaskByID(sched.TaskID(ret))
	if !ok {
		t.Fatal("spawned task not found by id")
	}

	if spawned.Name != "worker" {
		t.Fatalf("spawned task name = %q, want %q", spawned.Name, "worker")
	}

	ret = table.Dispatch(syscall.Args{Num: syscall.SysGetPID})
	if ret != int64(ops.current.ID) {
		t.Fatalf("Dispatch(SysGetPID) = %d, want %d", ret, ops.current.ID)
	}
}

// fakeMemoryOps is a minimal MemoryOps over a real mm.VMM/PMM pair.
type fakeMemoryOps struct {
	as *mm.AddressSpace
}

func (o *fakeMemoryOps) AddressSpaceFor(taskID uint64) *mm.AddressSpace { return o.as }
func (o *fakeMemoryOps) NumCores() int32                                { return 1 }
func (o *fakeMemoryOps) WakeKswapd()                                    {}

func TestRegisterMemoryAllocMapUnmapRoundTrip(t *testing.T) {
	pmm := mm.NewPMM(0, 64)
	vmm := mm.NewVMM(pmm, 0, nil)
	as := vmm.NewAddressSpace(1)

	table := syscall.NewTable(nil)
	syscall.RegisterMemory(table, vmm, pmm, &fakeMemoryOps{as: as})

	frameRet := table.Dispatch(syscall.Args{Num: syscall.SysMemAlloc, Arg2: uint64(mm.ZoneNormal)})
	if frameRet < 0 {
		t.Fatalf("Dispatch(SysMemAlloc) = %d, want >= 0", frameRet)
	}

	mapRet := table.Dispatch(syscall.Args{
		Num:  syscall.SysMemMap,
		Arg2: uint64(mm.PageSize),
		Arg3: uint64(frameRet),
		Arg4: uint64(mm.Present | mm.Writable),
	})
	if mapRet != 0 {
		t.Fatalf("Dispatch(SysMemMap) = %d, want 0", mapRet)
	}

	// Mapping the same page again must fail with AddressInUse.
	remapRet := table.Dispatch(syscall.Args{
		Num:  syscall.SysMemMap,
		Arg2: uint64(mm.PageSize),
		Arg3: uint64(frameRet),
		Arg4: uint64(mm.Present),
	})
	if remapRet != -int64(syscall.ErrAddressInUse) {
		t.Fatalf("Dispatch(SysMemMap) on already-mapped page = %d, want %d", remapRet, -int64(syscall.ErrAddressInUse))
	}

	unmapRet := table.Dispatch(syscall.Args{Num: syscall.SysMemUnmap, Arg2: uint64(mm.PageSize)})
	if unmapRet != 0 {
		t.Fatalf("Dispatch(SysMemUnmap) = %d, want 0", unmapRet)
	}
}

// fakeHandleOps backs HandleOps with a single real kobject.HandleTable.
type fakeHandleOps struct {
	table *kobject.HandleTable
}

func (o *fakeHandleOps) HandleTableFor(taskID uint64) *kobject.HandleTable { return o.table }

type fakeObject struct{ koid kobject.KOID }

func (f *fakeObject) KOID() kobject.KOID   { return f.koid }
func (f *fakeObject) TypeName() string     { return "fake" }
func (f *fakeObject) OnFinalRelease()      {}

func TestRegisterHandleDupAndClose(t *testing.T) {
	table := kobject.NewHandleTable()
	disp := kobject.NewDispatcher(&fakeObject{koid: kobject.GenerateKOID()})
	h := table.Alloc(disp, kobject.RightRead|kobject.RightDuplicate)

	sysTable := syscall.NewTable(nil)
	syscall.RegisterHandle(sysTable, &fakeHandleOps{table: table})

	ret := sysTable.Dispatch(syscall.Args{Num: syscall.SysHandleCheckRights, Arg2: uint64(h), Arg3: uint64(kobject.RightRead)})
	if ret < 0 {
		t.Fatalf("Dispatch(SysHandleCheckRights) = %d, want >= 0", ret)
	}

	dupRet := sysTable.Dispatch(syscall.Args{Num: syscall.SysHandleDup, Arg2: uint64(h), Arg3: uint64(kobject.RightRead)})
	if dupRet < 0 {
		t.Fatalf("Dispatch(SysHandleDup) = %d, want >= 0", dupRet)
	}

	closeRet := sysTable.Dispatch(syscall.Args{Num: syscall.SysHandleClose, Arg2: uint64(h)})
	if closeRet != 0 {
		t.Fatalf("Dispatch(SysHandleClose) = %d, want 0", closeRet)
	}

	// Closed handle must now fail rights checks.
	ret = sysTable.Dispatch(syscall.Args{Num: syscall.SysHandleCheckRights, Arg2: uint64(h), Arg3: uint64(kobject.RightRead)})
	if ret != -int64(syscall.ErrBadHandle) {
		t.Fatalf("Dispatch(SysHandleCheckRights) after close = %d, want %d", ret, -int64(syscall.ErrBadHandle))
	}
}
