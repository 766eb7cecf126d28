// Package kernel assembles the subsystems specified elsewhere in this module — physical and
// virtual memory (internal/mm), task scheduling (internal/sched), the object/handle/capability
// layer (internal/kobject), IPC (internal/ipc), the syscall ABI (internal/syscall), and the
// boot-time collaborators (internal/boot, internal/extiface) — into one running kernel instance.
// It is the concrete implementation behind every *Ops interface internal/syscall declares, the
// same way vm.LC3 is the one struct every device and instruction in the teacher repo is wired
// through.
package kernel

import (
	"sync"

	"github.com/redstone-os/redstone/internal/arch"
	"github.com/redstone-os/redstone/internal/boot"
	"github.com/redstone-os/redstone/internal/extiface"
	"github.com/redstone-os/redstone/internal/ipc"
	"github.com/redstone-os/redstone/internal/ktime"
	"github.com/redstone-os/redstone/internal/log"
	"github.com/redstone-os/redstone/internal/mm"
	"github.com/redstone-os/redstone/internal/sched"
	"github.com/redstone-os/redstone/internal/syscall"
)

// Kernel is the assembled machine: every subsystem plus the bookkeeping (task table, per-task
// address spaces, simulated physical RAM) that a real kernel would keep in arch-specific globals
// or per-CPU structures.
type Kernel struct {
	mu sync.Mutex

	Arch      *arch.Machine
	Shootdown *arch.Shootdown
	PMM       *mm.PMM
	VMM       *mm.VMM
	KernelAS  *mm.AddressSpace

	Sched  *sched.Scheduler
	Clock  *ktime.Clock
	Timers *ktime.Queue
	FutexSet *ipc.Futex

	Reclaim *mm.Kswapd
	oom     *mm.OOMKiller

	RootFS extiface.VFSNode
	Gfx  *Framebuffer

	Syscalls *syscall.Table

	log *log.Logger

	tasks      map[sched.TaskID]*sched.Task
	addrSpaces map[uint64]*mm.AddressSpace
	nextTaskID sched.TaskID

	// physMem simulates byte-addressable RAM: physMem[frame] holds the PageSize bytes backing
	// that physical frame. Real physical memory is whatever DRAM the bootloader handed off;
	// internal/mm's PMM only tracks frame allocation, not storage, so the hosted simulation needs
	// its own backing store for UserMemory to read and write through.
	physMem [][]byte

	power chan struct{}
}

// OptionFn configures a Kernel during New, in the teacher's two-phase style (vm.New's OptionFn):
// every option runs once before the syscall table and device state are wired (late=false) and
// once after (late=true), so options can either shape initial construction or layer behavior on
// top of the fully assembled kernel.
type OptionFn func(k *Kernel, late bool)

// WithLogger overrides the kernel's logger.
func WithLogger(logger *log.Logger) OptionFn {
	return func(k *Kernel, late bool) {
		if !late {
			k.log = logger
		}
	}
}

// WithInitramfs mounts data as the root filesystem, matching spec.md §6's initramfs handoff.
func WithInitramfs(data []byte) OptionFn {
	return func(k *Kernel, late bool) {
		if !late {
			k.RootFS = boot.NewInitramfs(data)
		}
	}
}

// New assembles a Kernel with numCores logical CPUs and numFrames physical page frames of
// simulated RAM, then installs every syscall family into its dispatch table.
func New(numCores int, numFrames uint64, opts ...OptionFn) *Kernel {
	k := &Kernel{
		log:        log.DefaultLogger(),
		tasks:      make(map[sched.TaskID]*sched.Task),
		addrSpaces: make(map[uint64]*mm.AddressSpace),
		physMem:    make([][]byte, numFrames),
		power:      make(chan struct{}),
	}

	for _, fn := range opts {
		fn(k, false)
	}

	k.Arch = arch.NewMachine(numCores)
	k.Shootdown = arch.NewShootdown()
	k.PMM = mm.NewPMM(0, numFrames)
	k.VMM = mm.NewVMM(k.PMM, mm.Addr(numFrames)*mm.PageSize, k.Shootdown)
	k.KernelAS = k.VMM.NewAddressSpace(0)
	k.VMM.SetKernelAddressSpace(k.KernelAS)

	idle := sched.NewTask(0, "idle", sched.PolicyRoundRobin, sched.PriorityIdle)
	idle.AddressSpaceID = 0
	k.tasks[0] = idle
	k.addrSpaces[0] = k.KernelAS
	k.nextTaskID = 1

	k.Sched = sched.NewScheduler(idle, k.log)
	k.Sched.Switch(0, true) // idle becomes Current until the first real task is enqueued.

	k.Clock = ktime.New(0)
	k.Timers = ktime.NewQueue(k.Clock)
	k.FutexSet = ipc.NewFutex()
	k.Gfx = newFramebuffer(boot.FramebufferInfo{})

	k.oom = mm.NewOOMKiller(k.log, k.oomCandidates, k.killForOOM)
	k.Reclaim = mm.NewKswapd(k.PMM, mm.DefaultWatermarks(), k.evictPages, k.oom, k.log)
	k.Reclaim.Start()

	if k.RootFS == nil {
		k.RootFS = boot.NewInitramfs(nil)
	}

	k.Syscalls = syscall.NewTable(k.log)
	syscall.RegisterProcess(k.Syscalls, k, k)
	syscall.RegisterMemory(k.Syscalls, k.VMM, k.PMM, k)
	syscall.RegisterHandle(k.Syscalls, k)
	syscall.RegisterIPC(k.Syscalls, k, k)
	syscall.RegisterSystem(k.Syscalls, k, k.log)
	syscall.RegisterTime(k.Syscalls, k.Clock, k.Timers, k)
	syscall.RegisterFilesystem(k.Syscalls, k, k)
	syscall.RegisterGraphicsInput(k.Syscalls, k, k)

	for _, fn := range opts {
		fn(k, true)
	}

	return k
}

// Boot validates info (halting, conceptually, on a bad magic — here, returning an error for the
// caller to act on) and mounts the initramfs it describes, matching spec.md §6's handoff sequence.
func (k *Kernel) Boot(info *boot.BootInfo, initramfsData []byte) error {
	if err := info.Validate(); err != nil {
		return err
	}

	k.mu.Lock()
	k.RootFS = boot.NewInitramfs(initramfsData)
	k.Gfx = newFramebuffer(info.Framebuffer)
	k.mu.Unlock()

	return nil
}

// Tick advances the kernel's notion of time by one timer interrupt: it steps the monotonic clock,
// fires any expired timers, and reports whether the running task's quantum has expired.
func (k *Kernel) Tick() bool {
	k.Clock.Tick()
	k.Timers.Advance()

	return k.Sched.Tick()
}

// Shutdown returns a channel that closes when the kernel receives a reboot or poweroff syscall,
// so a host loop driving Tick knows when to stop ticking.
func (k *Kernel) Shutdown() <-chan struct{} {
	return k.power
}
