package mm_test

import (
	"errors"
	"testing"
	"time"

	"github.com/redstone-os/redstone/internal/arch"
	"github.com/redstone-os/redstone/internal/mm"
)

func TestVMMMapTranslateUnmap(t *testing.T) {
	pmm := mm.NewPMM(0, 8)
	vmm := mm.NewVMM(pmm, 0xFFFF800000000000, arch.NewShootdown())
	as := vmm.NewAddressSpace(1)

	frame, err := pmm.AllocFrame(mm.ZoneNormal)
	if err != nil {
		t.Fatalf("AllocFrame() error = %v", err)
	}

	page := mm.Addr(0x1000)
	if err := vmm.Map(as, page, frame, mm.Present|mm.Writable); err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	got, flags, err := vmm.Translate(as, page)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	if got != frame {
		t.Fatalf("Translate() frame = %d, want %d", got, frame)
	}

	if flags&mm.Writable == 0 {
		t.Fatal("expected Writable flag to survive round trip")
	}

	if err := vmm.Unmap(as, page, 0); err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}

	_, _, err = vmm.Translate(as, page)
	if !errors.Is(err, mm.ErrNotMapped) {
		t.Fatalf("Translate() after unmap error = %v, want ErrNotMapped", err)
	}
}

func TestVMMMapRejectsDoubleMap(t *testing.T) {
	pmm := mm.NewPMM(0, 8)
	vmm := mm.NewVMM(pmm, 0xFFFF800000000000, arch.NewShootdown())
	as := vmm.NewAddressSpace(1)

	frame, _ := pmm.AllocFrame(mm.ZoneNormal)
	page := mm.Addr(0x2000)

	if err := vmm.Map(as, page, frame, mm.Present); err != nil {
		t.Fatalf("first Map() error = %v", err)
	}

	err := vmm.Map(as, page, frame, mm.Present)
	if !errors.Is(err, mm.ErrAlreadyMapped) {
		t.Fatalf("second Map() error = %v, want ErrAlreadyMapped", err)
	}
}

func TestVMMHHDMRoundTrip(t *testing.T) {
	const hhdmBase = mm.Addr(0xFFFF800000000000)
	vmm := mm.NewVMM(mm.NewPMM(0, 1), hhdmBase, nil)

	phys := mm.Addr(0x4000)
	virt := vmm.PhysToVirt(phys)

	got, ok := vmm.VirtToPhys(virt)
	if !ok {
		t.Fatal("VirtToPhys() reported address outside HHDM region")
	}

	if got != phys {
		t.Fatalf("VirtToPhys() = %#x, want %#x", got, phys)
	}
}

func TestVMMUnmapUnknownPage(t *testing.T) {
	vmm := mm.NewVMM(mm.NewPMM(0, 1), 0, nil)
	as := vmm.NewAddressSpace(0)

	err := vmm.Unmap(as, 0x9000, 0)
	if !errors.Is(err, mm.ErrNotMapped) {
		t.Fatalf("Unmap() on unmapped page error = %v, want ErrNotMapped", err)
	}
}

func TestVMMUnmapWithMultipleCoresCompletes(t *testing.T) {
	pmm := mm.NewPMM(0, 8)
	vmm := mm.NewVMM(pmm, 0, arch.NewShootdown())
	as := vmm.NewAddressSpace(1)

	frame, _ := pmm.AllocFrame(mm.ZoneNormal)
	page := mm.Addr(0x1000)

	if err := vmm.Map(as, page, frame, mm.Present); err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- vmm.Unmap(as, page, 4) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Unmap() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Unmap() did not return, the shootdown wait never completed")
	}
}

func TestVMMAllocAddressSpaceRoundRobinPCIDs(t *testing.T) {
	vmm := mm.NewVMM(mm.NewPMM(0, 1), 0, arch.NewShootdown())

	a := vmm.AllocAddressSpace(1)
	b := vmm.AllocAddressSpace(1)

	if a.PCID() == b.PCID() {
		t.Fatalf("AllocAddressSpace() returned the same PCID twice in a row: %d", a.PCID())
	}
}

func TestVMMMapInTargetMatchesMap(t *testing.T) {
	pmm := mm.NewPMM(0, 4)
	vmm := mm.NewVMM(pmm, 0, nil)
	as := vmm.NewAddressSpace(1)

	frame, _ := pmm.AllocFrame(mm.ZoneNormal)
	page := mm.Addr(0x5000)

	if err := vmm.MapInTarget(as, page, frame, mm.Present|mm.Writable); err != nil {
		t.Fatalf("MapInTarget() error = %v", err)
	}

	got, _, err := vmm.Translate(as, page)
	if err != nil || got != frame {
		t.Fatalf("Translate() after MapInTarget() = (%d, %v), want (%d, nil)", got, err, frame)
	}
}

func TestVMMSplitHugePage(t *testing.T) {
	pmm := mm.NewPMM(0, 1024)
	vmm := mm.NewVMM(pmm, 0, nil)
	as := vmm.NewAddressSpace(1)

	frame, err := pmm.AllocContiguous(mm.ZoneNormal, 512, 512)
	if err != nil {
		t.Fatalf("AllocContiguous() error = %v", err)
	}

	hugePage := mm.Addr(0)
	if err := vmm.Map(as, hugePage, frame, mm.Present|mm.Writable|mm.HugePage); err != nil {
		t.Fatalf("Map() huge page error = %v", err)
	}

	if err := vmm.SplitHugePage(as, hugePage); err != nil {
		t.Fatalf("SplitHugePage() error = %v", err)
	}

	for i := mm.Addr(0); i < 512; i++ {
		got, flags, err := vmm.Translate(as, hugePage+i*mm.PageSize)
		if err != nil {
			t.Fatalf("Translate() sub-page %d error = %v", i, err)
		}

		if got != frame+mm.Frame(i) {
			t.Fatalf("Translate() sub-page %d frame = %d, want %d", i, got, frame+mm.Frame(i))
		}

		if flags&mm.HugePage != 0 {
			t.Fatalf("Translate() sub-page %d still carries HugePage flag", i)
		}
	}
}

func TestVMMSplitHugePageRejectsNonHuge(t *testing.T) {
	pmm := mm.NewPMM(0, 4)
	vmm := mm.NewVMM(pmm, 0, nil)
	as := vmm.NewAddressSpace(1)

	frame, _ := pmm.AllocFrame(mm.ZoneNormal)
	if err := vmm.Map(as, 0, frame, mm.Present); err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	err := vmm.SplitHugePage(as, 0)
	if !errors.Is(err, mm.ErrHugeSplitFailed) {
		t.Fatalf("SplitHugePage() on a base-page mapping error = %v, want ErrHugeSplitFailed", err)
	}
}
