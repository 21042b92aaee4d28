// Package kmm brings up kernel memory management. Its constructor selects
// the paging mode, seeds the physical memory manager from the bootloader
// memory map and switches the MMU to the kernel address space.
package kmm

import (
	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
	"microdragon/kernel/mm/memmap"
	"microdragon/kernel/mm/pmm"
	"microdragon/kernel/mm/vmm"
)

var (
	// usableRegions holds the decoded memory map. It lives in package data
	// since no allocator exists while it is being filled.
	usableRegions memmap.RegionSet

	// freeRegions is usableRegions minus the ranges the contract marks
	// as reserved. Only these are handed to the frame allocator; the
	// direct map still covers every usable region.
	freeRegions memmap.RegionSet

	// deviceRegions holds the device memory ranges that must be reachable
	// through the direct map.
	deviceRegions [2]mm.Region

	log      = kfmt.PrefixWriter{Prefix: []byte("[kmm] ")}
	debugLog = kfmt.PrefixWriter{Prefix: []byte("[kmm] "), Level: kfmt.LevelDebug}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	panicFn            = kfmt.Panic
	selectPagingModeFn = vmm.SelectPagingMode
	readMemoryMapFn    = memmap.Read
	pmmInitFn          = pmm.Init
	vmmInitFn          = vmm.Init
)

// Init sets up the memory management subsystem. Any failure is fatal.
//
//kernel:constructor order=10
func Init(bc *boot.Contract) {
	if err := setup(bc); err != nil {
		panicFn(err)
	}
}

func setup(bc *boot.Contract) *kernel.Error {
	if err := selectPagingModeFn(&bc.MemoryInfo); err != nil {
		return err
	}

	if err := readMemoryMapFn(&bc.MemoryMapInfo, &usableRegions); err != nil {
		return err
	}
	printMemoryMap(&usableRegions)

	freeRegions = usableRegions
	for _, reserved := range bc.Reserved {
		if reserved.Length != 0 {
			kfmt.Fprintf(&debugLog, "reserving [0x%16x - 0x%16x]\n", reserved.Base, reserved.Base+reserved.Length-1)
			freeRegions.Exclude(mm.PhysAddr(reserved.Base), reserved.Length)
		}
	}

	if err := pmmInitFn(freeRegions.Regions()); err != nil {
		return err
	}

	return vmmInitFn(usableRegions.Regions(), collectDeviceRegions(bc))
}

// collectDeviceRegions returns the physical ranges of the boot-time devices
// that the kernel keeps accessing after the switch to the kernel address
// space.
func collectDeviceRegions(bc *boot.Contract) []mm.Region {
	count := 0

	if fb := &bc.FramebufferInfo; fb.Present() {
		size := fb.Size
		if size == 0 {
			size = fb.Pitch * fb.Height
		}
		deviceRegions[count] = mm.Region{Base: mm.PhysAddr(fb.Address), Length: size}
		count++
	}

	if bc.RSDPAddress != 0 {
		// The RSDP may straddle a page boundary; mapping a page worth of
		// bytes covers both pages.
		deviceRegions[count] = mm.Region{Base: mm.PhysAddr(bc.RSDPAddress), Length: mm.PageSize}
		count++
	}

	return deviceRegions[:count]
}

func printMemoryMap(set *memmap.RegionSet) {
	kfmt.Fprintf(&log, "usable memory map:\n")
	for _, region := range set.Regions() {
		kfmt.Fprintf(&log, "\t[0x%16x - 0x%16x], size: %10d\n", uint64(region.Base), uint64(region.End()-1), region.Length)
	}
	kfmt.Fprintf(&log, "available memory: %dKb\n", uint64(set.TotalSize()/mm.Kb))
}
