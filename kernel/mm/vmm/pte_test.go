package vmm

import (
	"testing"

	"microdragon/kernel/mm"
)

func TestPageTableEntryFlags(t *testing.T) {
	var (
		pte   pageTableEntry
		flag1 = PageTableEntryFlag(1 << 10)
		flag2 = PageTableEntryFlag(1 << 21)
	)

	if !pte.IsUnused() {
		t.Fatal("expected zero entry to be unused")
	}

	if pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return false")
	}

	pte.SetFlags(flag1 | flag2)

	if !pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return true")
	}

	pte.ClearFlags(flag1)

	if !pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return true")
	}

	if pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return false")
	}

	pte.ClearFlags(flag2)

	if !pte.IsUnused() {
		t.Fatal("expected entry with all flags cleared to be unused")
	}
}

func TestPageTableEntryAddressEncoding(t *testing.T) {
	var (
		pte  pageTableEntry
		mask = uint64(0x000ffffffffff000)
		addr = mm.PhysAddr(0xfeed000)
	)

	pte.install(addr|0xabc, FlagPresent|FlagRW|FlagNoExecute, mask)

	if got := pte.load().Address(mask); got != addr {
		t.Fatalf("expected address 0x%x; got 0x%x", addr, got)
	}

	if got := pte.load().Frame(mask); got != mm.FrameFromAddress(addr) {
		t.Fatalf("expected frame %d; got %d", mm.FrameFromAddress(addr), got)
	}

	if !pte.load().HasFlags(FlagPresent | FlagRW | FlagNoExecute) {
		t.Fatal("expected installed flags to be preserved")
	}

	// Address bits outside the mask must not leak into the entry.
	if pte.load().HasAnyFlag(FlagUserAccessible | FlagHugePage) {
		t.Fatal("expected unaligned address bits to be discarded")
	}

	pte.clear()
	if !pte.load().IsUnused() {
		t.Fatal("expected cleared entry to be unused")
	}
}
