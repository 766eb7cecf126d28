// redstone is the command-line interface to the hosted Redstone kernel simulator.
package main

import (
	"context"
	"os"

	"github.com/redstone-os/redstone/internal/cli"
	"github.com/redstone-os/redstone/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.Demo(),
		cmd.Executor(),
		cmd.Serial(),
	}
)

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
