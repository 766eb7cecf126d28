package mm_test

import (
	"errors"
	"testing"

	"github.com/redstone-os/redstone/internal/mm"
)

func TestPMMAllocFreeRoundTrip(t *testing.T) {
	pmm := mm.NewPMM(0, 16)

	f, err := pmm.AllocFrame(mm.ZoneNormal)
	if err != nil {
		t.Fatalf("AllocFrame() error = %v", err)
	}

	stats := pmm.Stats()
	if stats.UsedFrames != 1 {
		t.Fatalf("UsedFrames = %d, want 1", stats.UsedFrames)
	}

	if err := pmm.FreeFrame(f); err != nil {
		t.Fatalf("FreeFrame() error = %v", err)
	}

	stats = pmm.Stats()
	if stats.UsedFrames != 0 {
		t.Fatalf("UsedFrames = %d, want 0 after free", stats.UsedFrames)
	}
}

func TestPMMDoubleFreeRejected(t *testing.T) {
	pmm := mm.NewPMM(0, 4)

	f, err := pmm.AllocFrame(mm.ZoneNormal)
	if err != nil {
		t.Fatalf("AllocFrame() error = %v", err)
	}

	if err := pmm.FreeFrame(f); err != nil {
		t.Fatalf("first FreeFrame() error = %v", err)
	}

	err = pmm.FreeFrame(f)
	if !errors.Is(err, mm.ErrDoubleFree) {
		t.Fatalf("second FreeFrame() error = %v, want ErrDoubleFree", err)
	}
}

func TestPMMExhaustionReturnsOutOfMemory(t *testing.T) {
	pmm := mm.NewPMM(0, 2)

	if _, err := pmm.AllocFrame(mm.ZoneNormal); err != nil {
		t.Fatalf("first AllocFrame() error = %v", err)
	}

	if _, err := pmm.AllocFrame(mm.ZoneNormal); err != nil {
		t.Fatalf("second AllocFrame() error = %v", err)
	}

	_, err := pmm.AllocFrame(mm.ZoneNormal)
	if !errors.Is(err, mm.ErrOutOfMemory) {
		t.Fatalf("AllocFrame() on exhausted pool error = %v, want ErrOutOfMemory", err)
	}

	stats := pmm.Stats()
	if stats.FailedAllocs != 1 {
		t.Fatalf("FailedAllocs = %d, want 1", stats.FailedAllocs)
	}
}

func TestPMMAllocContiguousAlignedRun(t *testing.T) {
	pmm := mm.NewPMM(0, 64)

	// Force frame 0 to be taken so a naive scan starting at 0 can't satisfy alignment 4.
	first, err := pmm.AllocFrame(mm.ZoneNormal)
	if err != nil {
		t.Fatalf("AllocFrame() error = %v", err)
	}

	f, err := pmm.AllocContiguous(mm.ZoneNormal, 4, 4)
	if err != nil {
		t.Fatalf("AllocContiguous() error = %v", err)
	}

	if uint64(f)%4 != 0 {
		t.Fatalf("AllocContiguous() frame = %d, want a multiple of 4", f)
	}

	if f == first {
		t.Fatal("AllocContiguous() returned the already-allocated frame")
	}

	stats := pmm.Stats()
	if stats.UsedFrames != 5 {
		t.Fatalf("UsedFrames = %d, want 5", stats.UsedFrames)
	}
}

func TestPMMAllocContiguousExhaustionReturnsOutOfMemory(t *testing.T) {
	pmm := mm.NewPMM(0, 4)

	_, err := pmm.AllocContiguous(mm.ZoneNormal, 8, 1)
	if !errors.Is(err, mm.ErrOutOfMemory) {
		t.Fatalf("AllocContiguous() with too few frames error = %v, want ErrOutOfMemory", err)
	}
}
