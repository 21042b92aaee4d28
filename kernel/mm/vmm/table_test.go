package vmm

import (
	"testing"

	"microdragon/kernel"
	"microdragon/kernel/mm"
)

func TestGetOrCreateNextLevel(t *testing.T) {
	mockPackageHooks(t)
	mode := selectTestPagingMode(t, 4)
	arena := newTestArena(t, 4)
	allocations := countFrameAllocations(arena)

	var pte pageTableEntry
	table, err := getOrCreateNextLevel(mode, &pte, FlagPresent|FlagRW)
	if err != nil {
		t.Fatal(err)
	}

	if !pte.HasFlags(FlagPresent | FlagRW) {
		t.Fatal("expected entry to be installed as present and writable")
	}

	if got := pte.Address(mode.AddressMask); got != arena.PhysBase() {
		t.Fatalf("expected entry to point to 0x%x; got 0x%x", arena.PhysBase(), got)
	}

	for i, entry := range table {
		if !entry.IsUnused() {
			t.Fatalf("expected fresh table to be zeroed; entry %d is 0x%x", i, uint64(entry))
		}
	}

	table[7] = 0xbadf00d
	again, err := getOrCreateNextLevel(mode, &pte, FlagPresent|FlagRW)
	if err != nil {
		t.Fatal(err)
	}

	if again != table || again[7] != 0xbadf00d {
		t.Fatal("expected second call to return the existing table")
	}

	if *allocations != 1 {
		t.Fatalf("expected a single frame allocation across both calls; got %d", *allocations)
	}

	if got := pte.Address(mode.AddressMask); got != arena.PhysBase() {
		t.Fatalf("expected entry to be left untouched; got 0x%x", got)
	}
}

func TestGetOrCreateNextLevelErrors(t *testing.T) {
	mockPackageHooks(t)
	mode := selectTestPagingMode(t, 4)

	t.Run("huge page", func(t *testing.T) {
		pte := pageTableEntry(0x200000)
		pte.SetFlags(FlagPresent | FlagHugePage)

		if _, err := getOrCreateNextLevel(mode, &pte, FlagPresent); err != errNoHugePageSupport {
			t.Fatalf("expected error %v; got %v", errNoHugePageSupport, err)
		}
	})

	t.Run("allocation failure", func(t *testing.T) {
		expErr := &kernel.Error{Module: "test", Message: "out of memory"}
		mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
			return mm.InvalidFrame, expErr
		})

		var pte pageTableEntry
		if _, err := getOrCreateNextLevel(mode, &pte, FlagPresent); err != expErr {
			t.Fatalf("expected error %v; got %v", expErr, err)
		}

		if !pte.IsUnused() {
			t.Fatal("expected entry to remain unused after a failed allocation")
		}
	})
}
