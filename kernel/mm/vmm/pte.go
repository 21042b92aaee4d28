package vmm

import (
	"sync/atomic"

	"microdragon/kernel/mm"
)

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint64

// pageTableEntry describes a page table entry. These entries encode a
// physical address and a set of flags. Entries are either unused (zero), a
// leaf mapping or a pointer to the next-level table.
type pageTableEntry uint64

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte pageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uint64(*pte) | uint64(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uint64(*pte) &^ uint64(flags))
}

// IsUnused returns true if the entry has never been populated.
func (pte pageTableEntry) IsUnused() bool {
	return pte == 0
}

// Address decodes the physical address stored in the entry using the
// address mask of the active paging mode.
func (pte pageTableEntry) Address(mask uint64) mm.PhysAddr {
	return mm.PhysAddr(uint64(pte) & mask)
}

// Frame returns the physical frame that this entry points to.
func (pte pageTableEntry) Frame(mask uint64) mm.Frame {
	return mm.FrameFromAddress(pte.Address(mask))
}

// load reads the entry with a single atomic access.
func (pte *pageTableEntry) load() pageTableEntry {
	return pageTableEntry(atomic.LoadUint64((*uint64)(pte)))
}

// install overwrites the entry with the supplied address and flags using a
// single atomic store so that concurrent walkers never observe a partially
// updated entry.
func (pte *pageTableEntry) install(addr mm.PhysAddr, flags PageTableEntryFlag, mask uint64) {
	atomic.StoreUint64((*uint64)(pte), (uint64(addr)&mask)|uint64(flags))
}

// clear marks the entry as unused with a single atomic store.
func (pte *pageTableEntry) clear() {
	atomic.StoreUint64((*uint64)(pte), 0)
}
