package vmm

import (
	"microdragon/kernel"
	"microdragon/kernel/mm"
)

var errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}

// PageTable is a single level of the paging hierarchy. It occupies exactly
// one physical frame.
type PageTable [entriesPerTable]pageTableEntry

// tableAt returns the page table stored in the frame at physAddr, accessed
// through its current virtual alias.
func tableAt(physAddr mm.PhysAddr) *PageTable {
	return (*PageTable)(mm.PhysWindow(physAddr, mm.PageSize).Pointer(0, mm.PageSize))
}

// getOrCreateNextLevel returns the table referenced by pte. If pte is unused
// a fresh zeroed frame is allocated, installed with flags|FlagPresent and
// returned. Calling it again for the same entry returns the same table.
func getOrCreateNextLevel(mode PagingMode, pte *pageTableEntry, flags PageTableEntryFlag) (*PageTable, *kernel.Error) {
	entry := pte.load()
	if !entry.IsUnused() {
		if entry.HasFlags(FlagHugePage) {
			return nil, errNoHugePageSupport
		}
		return tableAt(entry.Address(mode.AddressMask)), nil
	}

	frame, err := mm.AllocFrame()
	if err != nil {
		return nil, err
	}

	// The table must be cleared before it becomes reachable from pte.
	mm.FrameWindow(frame).Zero()
	pte.install(frame.Address(), flags|FlagPresent, mode.AddressMask)
	return tableAt(frame.Address()), nil
}
