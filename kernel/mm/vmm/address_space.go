package vmm

import (
	"microdragon/kernel"
	"microdragon/kernel/cpu"
	"microdragon/kernel/mm"
	"microdragon/kernel/sync"
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	activePDTFn                = cpu.ActivePDT
	switchPDTFn                = cpu.SwitchPDT
	flushTLBEntryFn            = cpu.FlushTLBEntry
	saveAndDisableInterruptsFn = cpu.SaveAndDisableInterrupts
	restoreInterruptsFn        = cpu.RestoreInterrupts

	// ErrInvalidMapping is returned when trying to lookup a virtual memory
	// address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	errAlreadyMapped       = &kernel.Error{Module: "vmm", Message: "virtual address is already mapped"}
	errNonCanonicalAddress = &kernel.Error{Module: "vmm", Message: "virtual address is not canonical"}
	errNoRootTable         = &kernel.Error{Module: "vmm", Message: "address space has no root table"}
)

// AddressSpace is a page table hierarchy rooted at a single top-level table.
// All mutations are serialized by a spinlock held with interrupts masked.
type AddressSpace struct {
	lock sync.Spinlock
	root mm.Frame
}

// Init allocates and clears the root table for this address space.
func (as *AddressSpace) Init() *kernel.Error {
	if _, ok := activeMode.Get(); !ok {
		return errNoPagingMode
	}

	frame, err := mm.AllocFrame()
	if err != nil {
		return err
	}

	mm.FrameWindow(frame).Zero()
	as.root = frame
	return nil
}

// Root returns the physical address of the root table.
func (as *AddressSpace) Root() mm.PhysAddr {
	return as.root.Address()
}

// Activate loads the root table into the MMU.
func (as *AddressSpace) Activate() {
	switchPDTFn(uintptr(as.root.Address()))
}

// isActive returns true if the MMU is currently using this address space.
func (as *AddressSpace) isActive(mode PagingMode) bool {
	return mm.PhysAddr(activePDTFn())&mm.PhysAddr(mode.AddressMask) == as.root.Address()
}

// Map establishes a mapping between a virtual page and a physical frame. Any
// missing intermediate tables are allocated on the fly. Mapping a page that
// is already mapped returns an error and leaves the existing mapping intact.
// If the address space is active the TLB entry for the page is flushed.
func (as *AddressSpace) Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	mode, err := as.checkAccess(page.Address())
	if err != nil {
		return err
	}

	irqState := saveAndDisableInterruptsFn()
	as.lock.Acquire()
	err = as.mapLocked(mode, page, frame, flags)
	as.lock.Release()
	restoreInterruptsFn(irqState)

	return err
}

// MapRegion maps every frame of region to consecutive pages starting at
// virtAddr. Pages that are already mapped to the expected frame are skipped
// so that overlapping regions can be mapped more than once.
func (as *AddressSpace) MapRegion(virtAddr mm.VirtAddr, region mm.Region, flags PageTableEntryFlag) *kernel.Error {
	startFrame := mm.FrameFromAddress(region.Base)
	endFrame := mm.FrameFromAddress(region.End().AlignUp())
	page := mm.PageFromAddress(virtAddr)

	for frame := startFrame; frame < endFrame; frame, page = frame+1, page+1 {
		err := as.Map(page, frame, flags)
		if err == errAlreadyMapped {
			if mapped, lookupErr := as.Translate(page.Address()); lookupErr == nil && mm.FrameFromAddress(mapped) == frame {
				continue
			}
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// Unmap removes the mapping for the supplied page. If the address space is
// active the TLB entry for the page is flushed.
func (as *AddressSpace) Unmap(page mm.Page) *kernel.Error {
	mode, err := as.checkAccess(page.Address())
	if err != nil {
		return err
	}

	irqState := saveAndDisableInterruptsFn()
	as.lock.Acquire()
	err = as.unmapLocked(mode, page)
	as.lock.Release()
	restoreInterruptsFn(irqState)

	return err
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the address is not mapped.
func (as *AddressSpace) Translate(virtAddr mm.VirtAddr) (mm.PhysAddr, *kernel.Error) {
	mode, err := as.checkAccess(virtAddr)
	if err != nil {
		return 0, err
	}

	irqState := saveAndDisableInterruptsFn()
	as.lock.Acquire()
	pte, err := as.leafEntry(mode, virtAddr, false)
	var entry pageTableEntry
	if err == nil {
		entry = pte.load()
	}
	as.lock.Release()
	restoreInterruptsFn(irqState)

	if err != nil {
		return 0, err
	}
	if !entry.HasFlags(FlagPresent) {
		return 0, ErrInvalidMapping
	}

	return entry.Address(mode.AddressMask) + mm.PhysAddr(uintptr(virtAddr)&(mm.PageSize-1)), nil
}

func (as *AddressSpace) checkAccess(virtAddr mm.VirtAddr) (PagingMode, *kernel.Error) {
	mode, ok := activeMode.Get()
	switch {
	case !ok:
		return mode, errNoPagingMode
	case as.root == 0:
		return mode, errNoRootTable
	case !mode.canonical(virtAddr):
		return mode, errNonCanonicalAddress
	}
	return mode, nil
}

func (as *AddressSpace) mapLocked(mode PagingMode, page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	pte, err := as.leafEntry(mode, page.Address(), true)
	if err != nil {
		return err
	}

	if !pte.load().IsUnused() {
		return errAlreadyMapped
	}

	pte.install(frame.Address(), flags|FlagPresent, mode.AddressMask)
	if as.isActive(mode) {
		flushTLBEntryFn(uintptr(page.Address()))
	}
	return nil
}

func (as *AddressSpace) unmapLocked(mode PagingMode, page mm.Page) *kernel.Error {
	pte, err := as.leafEntry(mode, page.Address(), false)
	if err != nil {
		return err
	}

	if !pte.load().HasFlags(FlagPresent) {
		return ErrInvalidMapping
	}

	pte.clear()
	if as.isActive(mode) {
		flushTLBEntryFn(uintptr(page.Address()))
	}
	return nil
}

// leafEntry walks the hierarchy from the root down to the last-level entry
// for virtAddr. When create is true missing intermediate tables are
// allocated; otherwise a missing table yields ErrInvalidMapping.
func (as *AddressSpace) leafEntry(mode PagingMode, virtAddr mm.VirtAddr, create bool) (*pageTableEntry, *kernel.Error) {
	var err *kernel.Error
	table := tableAt(as.root.Address())

	for level := mode.Levels - 1; level > 0; level-- {
		pte := &table[mode.index(virtAddr, level)]

		if create {
			if table, err = getOrCreateNextLevel(mode, pte, FlagPresent|FlagRW); err != nil {
				return nil, err
			}
			continue
		}

		entry := pte.load()
		switch {
		case !entry.HasFlags(FlagPresent):
			return nil, ErrInvalidMapping
		case entry.HasFlags(FlagHugePage):
			return nil, errNoHugePageSupport
		}
		table = tableAt(entry.Address(mode.AddressMask))
	}

	return &table[mode.index(virtAddr, 0)], nil
}
