package extiface_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/redstone-os/redstone/internal/extiface"
)

// memBlockDevice is a trivial in-memory extiface.BlockDevice, used only to confirm the interface
// shape is exercised by something concrete.
type memBlockDevice struct {
	blocks [][]byte
}

func newMemBlockDevice(count int, size uint64) *memBlockDevice {
	blocks := make([][]byte, count)
	for i := range blocks {
		blocks[i] = make([]byte, size)
	}

	return &memBlockDevice{blocks: blocks}
}

func (d *memBlockDevice) ReadBlock(block uint64, buf []byte) error {
	if block >= uint64(len(d.blocks)) {
		return errors.New("block out of range")
	}

	copy(buf, d.blocks[block])

	return nil
}

func (d *memBlockDevice) WriteBlock(block uint64, buf []byte) error {
	if block >= uint64(len(d.blocks)) {
		return errors.New("block out of range")
	}

	copy(d.blocks[block], buf)

	return nil
}

func (d *memBlockDevice) BlockSize() uint64  { return uint64(len(d.blocks[0])) }
func (d *memBlockDevice) TotalBlocks() uint64 { return uint64(len(d.blocks)) }
func (d *memBlockDevice) IsReadOnly() bool    { return false }
func (d *memBlockDevice) Flush() error        { return nil }

func TestBlockDeviceReadWriteRoundTrip(t *testing.T) {
	var dev extiface.BlockDevice = newMemBlockDevice(4, 512)

	payload := bytes.Repeat([]byte{0xAB}, 512)
	if err := dev.WriteBlock(1, payload); err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}

	buf := make([]byte, 512)
	if err := dev.ReadBlock(1, buf); err != nil {
		t.Fatalf("ReadBlock() error = %v", err)
	}

	if !bytes.Equal(buf, payload) {
		t.Fatalf("ReadBlock() = %x, want %x", buf, payload)
	}
}

func TestNodeKindString(t *testing.T) {
	if extiface.NodeDirectory.String() != "directory" {
		t.Fatalf("NodeDirectory.String() = %q, want %q", extiface.NodeDirectory.String(), "directory")
	}
}
