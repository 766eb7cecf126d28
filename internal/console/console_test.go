// The test is skipped when stdin is not a terminal (ErrNoTTY). Notably, this includes when run
// with "go test" because it redirects tests' standard input/output streams. You can test it by
// building a test binary and running it directly:
//
//	$ go test -c && ./console.test
package console_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redstone-os/redstone/internal/console"
	"github.com/redstone-os/redstone/internal/extiface"
)

func TestConsoleImplementsCharDevice(t *testing.T) {
	var _ extiface.CharDevice = (*console.Console)(nil)
}

func TestConsoleReadDeliversTypedBytes(t *testing.T) {
	cons, err := console.NewConsole(os.Stdin, os.Stdout, os.Stderr)
	if errors.Is(err, console.ErrNoTTY) {
		t.Skipf("error: %s", err)
	}
	if err != nil {
		t.Fatalf("NewConsole() error = %s", err)
	}
	defer cons.Restore()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cons.Run(ctx) }()

	<-ctx.Done()
	<-done
}
