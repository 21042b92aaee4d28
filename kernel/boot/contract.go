// Package boot defines the Boot Contract: the bootloader-neutral description
// of the machine state that bootloader-specific glue hands to the kernel.
//
// The contract is a fixed-layout record. Optional fields signal absence
// through sentinel values (0 or an all-zero struct) so that it can be filled
// before any runtime support is available.
package boot

import (
	"microdragon/kernel"
	"microdragon/kernel/cpu"
)

// ContractVersion is the semantic version of the Contract layout. Module
// constructors declare the contract versions they understand via the
// requires= attribute of their constructor directive.
const ContractVersion = "1.1.0"

// MaxReservedRanges is the capacity of Contract.Reserved.
const MaxReservedRanges = 8

// MemoryMapType tags the native entry layout of the memory map that the
// bootloader provided.
type MemoryMapType uint64

const (
	// MemoryMapLimine is a flat array of 24-byte {base, length, type}
	// entries using the Limine memory map types.
	MemoryMapLimine MemoryMapType = iota

	// MemoryMapBootInfo is a flat array of 24-byte {start, end, kind}
	// regions as produced by the rust bootloader crate.
	MemoryMapBootInfo

	// MemoryMapMultiboot is a flat array of 24-byte multiboot2 memory map
	// entries.
	MemoryMapMultiboot
)

// StackInfo describes the stacks set up by the bootloader glue.
type StackInfo struct {
	Primary   uintptr
	Secondary uintptr
}

// FramebufferInfo describes a 32bpp direct-colour linear framebuffer. Address
// is a physical address. A zero Address means no framebuffer is available
// regardless of the other fields.
type FramebufferInfo struct {
	Address uint64
	Size    uint64
	Width   uint64
	Height  uint64
	Pitch   uint64

	RedMaskShift   uint8
	GreenMaskShift uint8
	BlueMaskShift  uint8
}

// Present returns true if the bootloader reported a framebuffer.
func (fb *FramebufferInfo) Present() bool {
	return fb.Address != 0
}

// MemoryMapInfo points to the bootloader-native memory map. Pointer addresses
// an array of exactly Count entries in the layout selected by Type. The
// backing memory is only guaranteed to be valid until the memory map reader
// has consumed it.
type MemoryMapInfo struct {
	Pointer uint64
	Count   uint64
	Type    MemoryMapType
}

// MemoryInfo describes the paging mode that is active when the bootloader
// transfers control to the kernel.
type MemoryInfo struct {
	VirtualAddressBits  uint8
	PhysicalAddressBits uint8

	// PageTableEntryAddressMask isolates the physical address bits of a
	// page table entry.
	PageTableEntryAddressMask uint64

	// HighestPageTableLevel is 4 or 5 on amd64.
	HighestPageTableLevel uint8
}

// PhysRange is a range of physical memory. A zero Length marks an unused
// slot.
type PhysRange struct {
	Base   uint64
	Length uint64
}

// Contract is produced once per boot by the bootloader glue and passed by
// reference to every module constructor. Modules may keep addresses derived
// from the contract but must not retain the Contract itself.
type Contract struct {
	StackInfo       StackInfo
	RSDPAddress     uint64
	FramebufferInfo FramebufferInfo
	MemoryMapInfo   MemoryMapInfo
	MemoryInfo      MemoryInfo

	// Reserved lists physical ranges that the memory map may report as
	// usable but that are still in use when the kernel starts: the kernel
	// image, the bootloader's information block and anything the
	// bootloader glue allocated before handing over control.
	Reserved [MaxReservedRanges]PhysRange
}

var (
	// la57SupportedFn is mocked by tests.
	la57SupportedFn = cpu.SupportsLA57

	errMissingMemoryMap    = &kernel.Error{Module: "boot", Message: "bootloader did not provide a memory map"}
	errUnsupportedLevel    = &kernel.Error{Module: "boot", Message: "unsupported page table level"}
	errAddressBitsMismatch = &kernel.Error{Module: "boot", Message: "virtual address width does not match page table level"}
	errBadAddressMask      = &kernel.Error{Module: "boot", Message: "page table entry address mask does not match physical address width"}
	errLA57NotSupported    = &kernel.Error{Module: "boot", Message: "5-level paging requested but the CPU does not support LA57"}
)

// Validate checks the contract for conditions that would make bring-up
// impossible. Any returned error is fatal.
func (c *Contract) Validate() *kernel.Error {
	if c.MemoryMapInfo.Pointer == 0 || c.MemoryMapInfo.Count == 0 {
		return errMissingMemoryMap
	}

	if err := c.MemoryInfo.validate(); err != nil {
		return err
	}

	return nil
}

func (mi *MemoryInfo) validate() *kernel.Error {
	var expVABits uint8
	switch mi.HighestPageTableLevel {
	case 4:
		expVABits = 48
	case 5:
		expVABits = 57
		if !la57SupportedFn() {
			return errLA57NotSupported
		}
	default:
		return errUnsupportedLevel
	}

	if mi.VirtualAddressBits != expVABits {
		return errAddressBitsMismatch
	}

	if mi.PhysicalAddressBits < 32 || mi.PhysicalAddressBits > 52 {
		return errBadAddressMask
	}

	if expMask := ((uint64(1) << mi.PhysicalAddressBits) - 1) &^ 0xfff; mi.PageTableEntryAddressMask != expMask {
		return errBadAddressMask
	}

	return nil
}
