package vmm

import (
	"testing"

	"microdragon/kernel/boot"
	"microdragon/kernel/mm"
)

func TestSelectPagingMode(t *testing.T) {
	specs := []struct {
		levels        uint8
		expBase       mm.VirtAddr
		expRootShift  uint
		expRootIndex  uintptr
		expSlotSpan   uint64
		nonCanonical  mm.VirtAddr
		highCanonical mm.VirtAddr
	}{
		{4, 0xffffc00000000000, 39, 384, 1 << 39, 0x0000800000000000, 0xffff800000000000},
		{5, 0xff80000000000000, 48, 384, 1 << 48, 0x0100000000000000, 0xff00000000000000},
	}

	for _, spec := range specs {
		mockPackageHooks(t)
		mode := selectTestPagingMode(t, spec.levels)

		if mode.Levels != spec.levels {
			t.Errorf("[%d-level] expected Levels to be %d; got %d", spec.levels, spec.levels, mode.Levels)
		}

		if mode.DirectMapBase != spec.expBase {
			t.Errorf("[%d-level] expected direct map base 0x%x; got 0x%x", spec.levels, spec.expBase, mode.DirectMapBase)
		}

		if got := mode.levelShift(mode.Levels - 1); got != spec.expRootShift {
			t.Errorf("[%d-level] expected root shift %d; got %d", spec.levels, spec.expRootShift, got)
		}

		if got := mode.index(mode.DirectMapBase, mode.Levels-1); got != spec.expRootIndex {
			t.Errorf("[%d-level] expected root index %d; got %d", spec.levels, spec.expRootIndex, got)
		}

		if got := mode.slotSpan(); got != spec.expSlotSpan {
			t.Errorf("[%d-level] expected slot span 0x%x; got 0x%x", spec.levels, spec.expSlotSpan, got)
		}

		if mode.canonical(spec.nonCanonical) {
			t.Errorf("[%d-level] expected 0x%x to be non-canonical", spec.levels, spec.nonCanonical)
		}

		if !mode.canonical(spec.highCanonical) || !mode.canonical(0x1000) {
			t.Errorf("[%d-level] expected 0x%x and 0x1000 to be canonical", spec.levels, spec.highCanonical)
		}
	}
}

func TestSelectPagingModeErrors(t *testing.T) {
	mockPackageHooks(t)

	info := boot.MemoryInfo{VirtualAddressBits: 39, PhysicalAddressBits: 40, HighestPageTableLevel: 3}
	if err := SelectPagingMode(&info); err != errUnsupportedPagingMode {
		t.Fatalf("expected error %v; got %v", errUnsupportedPagingMode, err)
	}

	if _, ok := ActivePagingMode(); ok {
		t.Fatal("expected rejected mode not to be selected")
	}

	selectTestPagingMode(t, 4)

	info = boot.MemoryInfo{VirtualAddressBits: 57, PhysicalAddressBits: 52, PageTableEntryAddressMask: 0x000ffffffffff000, HighestPageTableLevel: 5}
	if err := SelectPagingMode(&info); err != errPagingModeAlreadySelected {
		t.Fatalf("expected error %v; got %v", errPagingModeAlreadySelected, err)
	}

	if mode, _ := ActivePagingMode(); mode.Levels != 4 {
		t.Fatalf("expected the paging mode to stay fixed at 4 levels; got %d", mode.Levels)
	}
}

func TestPagingModeIndex(t *testing.T) {
	mockPackageHooks(t)
	mode := selectTestPagingMode(t, 4)

	virtAddr := mm.VirtAddr(0xffff8000_4020_3000)
	expIndices := []uintptr{3, 1, 1, 256}
	for level, exp := range expIndices {
		if got := mode.index(virtAddr, uint8(level)); got != exp {
			t.Errorf("expected index at level %d to be %d; got %d", level, exp, got)
		}
	}
}
