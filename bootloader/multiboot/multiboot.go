// Package multiboot translates the multiboot2 information block handed over
// by a multiboot-compliant bootloader into a boot.Contract.
package multiboot

import (
	"unsafe"

	"microdragon/kernel/boot"
	"microdragon/kernel/cpu"
)

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
	tagVbeInfo
	tagFramebufferInfo
	tagElfSymbols
	tagApmTable
	tagEFI32SystemTable
	tagEFI64SystemTable
	tagSMBIOSTables
	tagACPIOldRSDP
	tagACPINewRSDP
)

const (
	// mmapEntrySize is the only memory map entry layout understood by the
	// kernel: {base uint64, length uint64, type uint32, reserved uint32}.
	mmapEntrySize = 24

	// fbBitsPerPixel is the only framebuffer depth supported by the kernel.
	fbBitsPerPixel = 32

	// fbRGBTagSize is the size of the framebuffer tag contents for RGB
	// framebuffers. unsafe.Sizeof(framebufferTag{}) includes trailing
	// padding.
	fbRGBTagSize = 30

	// pagingLevels is the paging depth set up by the multiboot rt0 code.
	pagingLevels = 4

	// virtAddrBits is the canonical address width for 4-level paging.
	virtAddrBits = 48

	maxPhysAddrBits = 52
)

var (
	// addressBitsFn is mocked by tests.
	addressBitsFn = cpu.AddressBits
)

// tagHeader describes the header the preceedes each tag.
type tagHeader struct {
	// The type of the tag
	tagType tagType

	// The size of the tag including the header but *not* including any
	// padding. Multiboot2 places each tag at an 8-byte aligned
	// address.
	size uint32
}

// mmapHeader describes the header of the memory map tag.
type mmapHeader struct {
	// The size of each entry.
	entrySize uint32

	// The version of the entries that follow.
	entryVersion uint32
}

// framebufferType defines the type of the initialized framebuffer.
type framebufferType uint8

const (
	framebufferTypeIndexed framebufferType = iota
	framebufferTypeRGB
	framebufferTypeEGA
)

// framebufferTag provides information about the initialized framebuffer.
type framebufferTag struct {
	// The framebuffer physical address.
	physAddr uint64

	// Row pitch in bytes.
	pitch uint32

	// Width and height in pixels (or characters if type = framebufferTypeEGA)
	width, height uint32

	// Bits per pixel (non EGA modes only).
	bpp uint8

	fbType framebufferType

	reserved uint16

	// For RGB framebuffers the color info block follows the reserved
	// field: {redPosition, redMaskSize, greenPosition, greenMaskSize,
	// bluePosition, blueMaskSize}.
	redPosition   uint8
	redMaskSize   uint8
	greenPosition uint8
	greenMaskSize uint8
	bluePosition  uint8
	blueMaskSize  uint8
}

// FillContract populates bc from the multiboot2 information block at
// infoPtr. The block must be reachable at infoPtr; the addresses it contains
// (and infoPtr itself) are identity mapped by the rt0 code.
//
// The physical range occupied by the kernel image (which includes the rt0
// page tables and stacks) and the information block itself are recorded as
// reserved so that the frame allocator never hands them out.
//
// Optional data that is missing or in an unsupported format is left zeroed
// so that consumers treat it as absent. A memory map with an unexpected
// entry size is also left zeroed and is rejected by boot.Contract.Validate.
func FillContract(bc *boot.Contract, infoPtr uintptr, image boot.PhysRange, stacks boot.StackInfo) {
	*bc = boot.Contract{StackInfo: stacks}

	bc.Reserved[0] = image
	bc.Reserved[1] = boot.PhysRange{
		Base:   uint64(infoPtr),
		Length: uint64(*(*uint32)(unsafe.Pointer(infoPtr))),
	}

	fillMemoryMap(bc, infoPtr)
	fillFramebuffer(bc, infoPtr)
	fillRSDP(bc, infoPtr)
	fillMemoryInfo(bc)
}

func fillMemoryMap(bc *boot.Contract, infoPtr uintptr) {
	curPtr, size := findTagByType(infoPtr, tagMemoryMap)
	if size < uint32(unsafe.Sizeof(mmapHeader{})) {
		return
	}

	header := (*mmapHeader)(unsafe.Pointer(curPtr))
	if header.entrySize != mmapEntrySize {
		return
	}

	bc.MemoryMapInfo = boot.MemoryMapInfo{
		Pointer: uint64(curPtr + unsafe.Sizeof(mmapHeader{})),
		Count:   uint64((size - uint32(unsafe.Sizeof(mmapHeader{}))) / mmapEntrySize),
		Type:    boot.MemoryMapMultiboot,
	}
}

func fillFramebuffer(bc *boot.Contract, infoPtr uintptr) {
	curPtr, size := findTagByType(infoPtr, tagFramebufferInfo)
	if size < fbRGBTagSize {
		return
	}

	fb := (*framebufferTag)(unsafe.Pointer(curPtr))
	if fb.fbType != framebufferTypeRGB || fb.bpp != fbBitsPerPixel {
		return
	}

	bc.FramebufferInfo = boot.FramebufferInfo{
		Address:        fb.physAddr,
		Size:           uint64(fb.pitch) * uint64(fb.height),
		Width:          uint64(fb.width),
		Height:         uint64(fb.height),
		Pitch:          uint64(fb.pitch),
		RedMaskShift:   fb.redPosition,
		GreenMaskShift: fb.greenPosition,
		BlueMaskShift:  fb.bluePosition,
	}
}

// fillRSDP records the address of the RSDP copy embedded in the ACPI tags.
// The ACPI 2.0+ copy is preferred.
func fillRSDP(bc *boot.Contract, infoPtr uintptr) {
	for _, tag := range []tagType{tagACPINewRSDP, tagACPIOldRSDP} {
		if curPtr, size := findTagByType(infoPtr, tag); size != 0 {
			bc.RSDPAddress = uint64(curPtr)
			return
		}
	}
}

func fillMemoryInfo(bc *boot.Contract) {
	physBits, _ := addressBitsFn()
	if physBits > maxPhysAddrBits {
		physBits = maxPhysAddrBits
	}

	bc.MemoryInfo = boot.MemoryInfo{
		VirtualAddressBits:        virtAddrBits,
		PhysicalAddressBits:       physBits,
		PageTableEntryAddressMask: ((uint64(1) << physBits) - 1) &^ 0xfff,
		HighestPageTableLevel:     pagingLevels,
	}
}

// findTagByType scans the multiboot info data looking for the start of of the
// specified type. It returns a pointer to the tag contents start offset and
// the content length exluding the tag header.
//
// If the tag is not present in the multiboot info, findTagSection will return
// back (0,0).
func findTagByType(infoPtr uintptr, tagType tagType) (uintptr, uint32) {
	var ptrTagHeader *tagHeader

	curPtr := infoPtr + 8
	for ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)); ptrTagHeader.tagType != tagMbSectionEnd; ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)) {
		if ptrTagHeader.tagType == tagType {
			return curPtr + 8, ptrTagHeader.size - 8
		}

		// Tags are aligned at 8-byte aligned addresses
		curPtr += uintptr(int32(ptrTagHeader.size+7) & ^7)
	}

	return 0, 0
}
