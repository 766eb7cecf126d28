package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redstone-os/redstone/internal/boot"
	"github.com/redstone-os/redstone/internal/cli"
	"github.com/redstone-os/redstone/internal/kernel"
	"github.com/redstone-os/redstone/internal/log"
	"github.com/redstone-os/redstone/internal/sched"
	"github.com/redstone-os/redstone/internal/syscall"
)

func Executor() cli.Command {
	exec := &executor{log: log.DefaultLogger()}
	return exec
}

type executor struct {
	logLevel slog.Level
	cores    int
	log      *log.Logger
}

func (executor) Description() string {
	return "boot a kernel from an initramfs image"
}

func (executor) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `exec initramfs.tar

Boots a hosted kernel from a USTAR initramfs image, spawns an init task
that opens and reads every entry the archive carries, then exits and is
reaped by the kernel.`)

	return err
}

func (ex *executor) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	fs.IntVar(&ex.cores, "cores", 1, "number of logical CPUs to simulate")
	fs.Func("loglevel", "set log `level`", func(s string) error {
		return ex.logLevel.UnmarshalText([]byte(s))
	})

	return fs
}

// Run boots a kernel from the initramfs named in args[0], runs init's one-shot program (list,
// open, read, and close every archive entry, then exit), and waits on it the way a real init's
// parent (the kernel itself, reaping PID 1) would.
func (ex *executor) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	log.LogLevel.Set(ex.logLevel)

	if len(args) == 0 {
		logger.Error("exec requires an initramfs path")
		return -1
	}

	data, err := ex.loadInitramfs(args[0])
	if err != nil {
		logger.Error("Error loading initramfs", "err", err)
		return -1
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	logger.Debug("Initializing kernel", "cores", ex.cores)

	k := kernel.New(ex.cores, 256, kernel.WithLogger(logger))

	info := &boot.BootInfo{
		Magic:         boot.Magic,
		InitramfsBase: 0,
		InitramfsSize: uint64(len(data)),
	}

	if err := k.Boot(info, data); err != nil {
		logger.Error("Error during boot handoff", "err", err)
		return 1
	}

	init, err := k.Spawn("init", sched.PolicyRoundRobin, sched.PriorityDefault)
	if err != nil {
		logger.Error("Error spawning init task", "err", err)
		return 1
	}

	k.Sched.Switch(k.Clock.Ticks(), true)

	logger.Info("Starting kernel", "init_pid", init.ID)

	select {
	case <-ctx.Done():
		logger.Warn("Exec timeout")
		return 2
	default:
	}

	if err := ex.runInit(k, init.ID, stdout); err != nil {
		logger.Error("init failed", "err", err)
		return 1
	}

	k.Sched.Switch(k.Clock.Ticks(), true) // back to the kernel's own task, to reap init

	waitRet := k.Syscalls.Dispatch(syscall.Args{Num: syscall.SysWait, Arg1: uint64(init.ID)})
	if waitRet < 0 {
		logger.Error("wait(init) failed", "ret", waitRet)
		return 1
	}

	ex.printStats(stdout, k)

	return 0
}

// runInit reads every regular file the mounted initramfs carries through the open/read/close
// syscall family, prints its contents, then exits with status 0 — init's entire, minimal program.
func (ex *executor) runInit(k *kernel.Kernel, initID sched.TaskID, stdout io.Writer) error {
	entries, err := k.Root().List()
	if err != nil {
		return err
	}

	pathAddr := uint64(0x1000)
	readAddr := uint64(0x2000)

	for _, entry := range entries {
		name := entry.Name()

		if err := k.WriteBytes(pathAddr, append([]byte(name), 0)); err != nil {
			return err
		}

		openRet := k.Syscalls.Dispatch(syscall.Args{Num: syscall.SysOpen, Arg1: pathAddr, Arg3: uint64(initID)})
		if openRet < 0 {
			return fmt.Errorf("open(%s) returned %d", name, openRet)
		}

		readRet := k.Syscalls.Dispatch(syscall.Args{
			Num: syscall.SysRead, Arg1: uint64(openRet), Arg2: readAddr, Arg3: 4096, Arg4: uint64(initID),
		})
		if readRet < 0 {
			return fmt.Errorf("read(%s) returned %d", name, readRet)
		}

		content, err := k.ReadBytes(readAddr, int(readRet))
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "%s: %s\n", name, content)

		closeRet := k.Syscalls.Dispatch(syscall.Args{
			Num: syscall.SysClose, Arg1: uint64(openRet), Arg2: uint64(initID),
		})
		if closeRet != 0 {
			return fmt.Errorf("close(%s) returned %d", name, closeRet)
		}
	}

	exitRet := k.Syscalls.Dispatch(syscall.Args{Num: syscall.SysExit, Arg1: 0})
	if exitRet != 0 {
		return fmt.Errorf("exit returned %d", exitRet)
	}

	return nil
}

func (ex *executor) printStats(out io.Writer, k *kernel.Kernel) {
	uptime, used, total := k.SysInfo()
	fmt.Fprintf(out, "uptime=%d ticks frames=%d/%d used\n", uptime, used, total)
}

func (ex executor) loadInitramfs(fn string) ([]byte, error) {
	ex.log.Debug("Loading initramfs", "file", fn)

	file, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ex.log.Error(err.Error())
		return nil, err
	}

	ex.log.Debug("Loaded file", "bytes", len(data))

	return data, nil
}
