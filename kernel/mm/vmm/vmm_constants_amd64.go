package vmm

const (
	// maxPageLevels is the deepest paging hierarchy supported by the amd64
	// architecture (5-level paging with LA57).
	maxPageLevels = 5

	// pageLevelBits is the number of virtual address bits consumed by each
	// page table level. Each table holds 1 << pageLevelBits entries.
	pageLevelBits = 9

	// entriesPerTable is the number of 8-byte entries in a page table.
	entriesPerTable = 1 << pageLevelBits

	// directMapFirstSlot is the top-level table slot where the direct map
	// of physical memory starts. In 4-level mode this corresponds to
	// virtual address 0xffffc00000000000; in 5-level mode it corresponds
	// to 0xff80000000000000.
	directMapFirstSlot = 384

	// directMapSlots is the number of top-level slots reserved for the
	// direct map: 32 TiB of physical memory in 4-level mode and 16 PiB in
	// 5-level mode.
	directMapSlots = 64
)

const (
	// FlagPresent is set when the page is available in memory and not swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set if when using 2Mb pages instead of 4K pages.
	FlagHugePage

	// FlagGlobal if set, prevents the TLB from flushing the cached memory address
	// for this page when the swapping page tables by updating the CR3 register.
	FlagGlobal

	// FlagNoExecute if set, indicates that a page contains non-executable code.
	FlagNoExecute = 1 << 63
)
