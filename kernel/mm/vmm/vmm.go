// Package vmm manages the kernel page tables. It builds the kernel address
// space on top of the tables inherited from the bootloader, installs a
// direct map of physical memory and switches the MMU over to it.
package vmm

import (
	"microdragon/kernel"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
	"microdragon/kernel/sync"
)

const (
	// directMapFlags are applied to every page of the direct map.
	directMapFlags = FlagRW | FlagNoExecute | FlagGlobal

	// deviceMapFlags are applied to device memory regions such as the
	// framebuffer.
	deviceMapFlags = directMapFlags | FlagWriteThroughCaching
)

var (
	// kernelSpace is the address space built by Init.
	kernelSpace AddressSpace

	// kernelSpaceReady is set once kernelSpace has been activated.
	kernelSpaceReady sync.Cell[*AddressSpace]

	// setPhysOffsetFn is mocked by tests.
	setPhysOffsetFn = mm.SetPhysOffset

	errKernelSpaceExists  = &kernel.Error{Module: "vmm", Message: "kernel address space already initialized"}
	errDirectMapSlotInUse = &kernel.Error{Module: "vmm", Message: "bootloader tables occupy the direct map slots"}
	errDirectMapOverflow  = &kernel.Error{Module: "vmm", Message: "physical region exceeds the direct map"}
)

// Init builds and activates the kernel address space. The new root table
// inherits every top-level entry of the currently active root except the
// direct map slots, which are populated with the usable regions and the
// supplied device regions. Once the new root is active, mm.PhysToVirt
// resolves physical addresses through the direct map.
func Init(usable []mm.Region, devices []mm.Region) *kernel.Error {
	mode, ok := activeMode.Get()
	if !ok {
		return errNoPagingMode
	}
	if kernelSpaceReady.IsSet() {
		return errKernelSpaceExists
	}

	if err := kernelSpace.Init(); err != nil {
		return err
	}

	if err := inheritActiveRoot(mode, tableAt(kernelSpace.Root())); err != nil {
		return err
	}

	for _, region := range usable {
		if err := mapDirect(mode, region, directMapFlags); err != nil {
			return err
		}
	}
	for _, region := range devices {
		if err := mapDirect(mode, region, deviceMapFlags); err != nil {
			return err
		}
	}

	if err := kernelSpaceReady.Set(&kernelSpace); err != nil {
		return errKernelSpaceExists
	}

	kernelSpace.Activate()
	setPhysOffsetFn(uintptr(mode.DirectMapBase))

	kfmt.Printf("[vmm] kernel address space active (root: 0x%x, direct map: 0x%x)\n",
		uint64(kernelSpace.Root()), uintptr(mode.DirectMapBase))
	return nil
}

// KernelSpaceActive returns true once Init has switched the MMU to the
// kernel address space.
func KernelSpaceActive() bool {
	return kernelSpaceReady.IsSet()
}

// KernelSpace returns the kernel address space or nil if Init has not
// completed yet.
func KernelSpace() *AddressSpace {
	as, _ := kernelSpaceReady.Get()
	return as
}

// inheritActiveRoot copies the top-level entries of the active root into
// root so that the kernel image, stacks and boot structures stay mapped.
func inheritActiveRoot(mode PagingMode, root *PageTable) *kernel.Error {
	activeRoot := tableAt(mm.PhysAddr(activePDTFn()) & mm.PhysAddr(mode.AddressMask))

	for slot := 0; slot < entriesPerTable; slot++ {
		entry := activeRoot[slot].load()
		if slot >= directMapFirstSlot && slot < directMapFirstSlot+directMapSlots {
			if !entry.IsUnused() {
				return errDirectMapSlotInUse
			}
			continue
		}

		if !entry.IsUnused() {
			root[slot].install(entry.Address(mode.AddressMask), PageTableEntryFlag(uint64(entry)&^mode.AddressMask), mode.AddressMask)
		}
	}

	return nil
}

// mapDirect maps region into the direct map. Region bounds are expanded to
// page boundaries.
func mapDirect(mode PagingMode, region mm.Region, flags PageTableEntryFlag) *kernel.Error {
	if region.Length == 0 {
		return nil
	}

	limit := mm.PhysAddr(directMapSlots * mode.slotSpan())
	if region.End() > limit || region.End() < region.Base {
		return errDirectMapOverflow
	}

	aligned := mm.Region{Base: region.Base.AlignDown()}
	aligned.Length = uint64(region.End().AlignUp() - aligned.Base)

	return kernelSpace.MapRegion(mode.DirectMapBase+mm.VirtAddr(aligned.Base), aligned, flags)
}
