package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redstone-os/redstone/internal/boot"
	"github.com/redstone-os/redstone/internal/cli"
	"github.com/redstone-os/redstone/internal/console"
	"github.com/redstone-os/redstone/internal/kernel"
	"github.com/redstone-os/redstone/internal/log"
)

func Serial() cli.Command { return new(serial) }

type serial struct {
	cores   int
	seconds int
}

func (serial) Description() string {
	return "attach the controlling terminal to a booted kernel as a serial console"
}

func (serial) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `serial [ -cores N | -seconds N ]

Boots a hosted kernel and attaches the calling terminal to it as a serial
console: keystrokes typed at the terminal are pumped into the kernel's
keyboard scancode queue until the duration elapses or input ends.`)

	return err
}

func (s *serial) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("serial", flag.ExitOnError)

	fs.IntVar(&s.cores, "cores", 1, "number of logical CPUs to simulate")
	fs.IntVar(&s.seconds, "seconds", 5, "how long to pump the console before exiting")

	return fs
}

// Run boots a kernel, attaches the process's own terminal as a serial console via internal/console,
// and pumps keystrokes into the kernel's keyboard queue for the configured duration. It is the
// hosted stand-in for a real machine's PS/2 or USB HID interrupt path, which spec.md §6 leaves to
// an external driver collaborator.
func (s *serial) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	cons, err := console.NewConsole(os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		logger.Error("console unavailable", "err", err)
		return 1
	}
	defer cons.Restore()

	k := kernel.New(s.cores, 64, kernel.WithLogger(logger))

	if err := k.Boot(&boot.BootInfo{Magic: boot.Magic}, nil); err != nil {
		logger.Error("boot handoff failed", "err", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.seconds)*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- cons.Run(ctx) }()

	pumpErr := k.PumpCharDevice(ctx, cons)

	<-runErr

	fmt.Fprintf(out, "console session ended: %v\n", pumpErr)

	return 0
}
