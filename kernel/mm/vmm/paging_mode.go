package vmm

import (
	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/debug"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
	"microdragon/kernel/sync"
)

var (
	// activeMode is selected once from the Boot Contract and used by every
	// subsequent table walk.
	activeMode sync.Cell[PagingMode]

	errUnsupportedPagingMode     = &kernel.Error{Module: "vmm", Message: "unsupported paging mode"}
	errPagingModeAlreadySelected = &kernel.Error{Module: "vmm", Message: "paging mode already selected"}
	errNoPagingMode              = &kernel.Error{Module: "vmm", Message: "paging mode not selected"}
	errWalkTooDeep               = &kernel.Error{Module: "vmm", Message: "table walk beyond the supported paging depth"}
)

// PagingMode describes the page table hierarchy used by the kernel.
type PagingMode struct {
	// Levels is the number of page table levels (4 or 5).
	Levels uint8

	// VirtualAddressBits is the width of a canonical virtual address.
	VirtualAddressBits uint8

	// AddressMask isolates the physical address bits of a page table entry.
	AddressMask uint64

	// DirectMapBase is the virtual address where physical address 0 is
	// mapped once the kernel address space is active.
	DirectMapBase mm.VirtAddr
}

// SelectPagingMode fixes the paging mode for the lifetime of the kernel. It
// can only be called once; any further call returns an error.
func SelectPagingMode(info *boot.MemoryInfo) *kernel.Error {
	if info.HighestPageTableLevel != 4 && info.HighestPageTableLevel != maxPageLevels {
		return errUnsupportedPagingMode
	}

	mode := PagingMode{
		Levels:             info.HighestPageTableLevel,
		VirtualAddressBits: info.VirtualAddressBits,
		AddressMask:        info.PageTableEntryAddressMask,
	}
	mode.DirectMapBase = mode.slotAddress(directMapFirstSlot)

	if err := activeMode.Set(mode); err != nil {
		return errPagingModeAlreadySelected
	}

	kfmt.Printf("[vmm] using %d-level paging (%d-bit virtual addresses)\n", mode.Levels, mode.VirtualAddressBits)
	return nil
}

// ActivePagingMode returns the selected paging mode and true or a zero
// PagingMode and false if SelectPagingMode has not been called yet.
func ActivePagingMode() (PagingMode, bool) {
	return activeMode.Get()
}

// levelShift returns the shift that extracts the table index for the given
// level from a virtual address. Level 0 is the last level (page table) and
// level Levels-1 is the root.
func (m PagingMode) levelShift(level uint8) uint {
	debug.Assert(level < m.Levels, errWalkTooDeep)
	return mm.PageShift + pageLevelBits*uint(level)
}

// index returns the table index for virtAddr at the given level.
func (m PagingMode) index(virtAddr mm.VirtAddr, level uint8) uintptr {
	return (uintptr(virtAddr) >> m.levelShift(level)) & (entriesPerTable - 1)
}

// slotAddress returns the canonical virtual address covered by the first
// byte of the supplied root table slot.
func (m PagingMode) slotAddress(slot uint64) mm.VirtAddr {
	addr := slot << m.levelShift(m.Levels-1)
	if addr&(1<<(m.VirtualAddressBits-1)) != 0 {
		addr |= ^uint64(0) << m.VirtualAddressBits
	}
	return mm.VirtAddr(addr)
}

// slotSpan returns the number of bytes covered by a root table slot.
func (m PagingMode) slotSpan() uint64 {
	return 1 << m.levelShift(m.Levels-1)
}

// canonical returns true if virtAddr is sign-extended from its most
// significant implemented bit.
func (m PagingMode) canonical(virtAddr mm.VirtAddr) bool {
	unusedBits := 64 - uint(m.VirtualAddressBits)
	return uint64(int64(virtAddr)<<unusedBits>>unusedBits) == uint64(virtAddr)
}
