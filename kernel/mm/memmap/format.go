package memmap

import (
	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/mm"
)

// maxFormats bounds the number of memory map tags the reader can dispatch
// on.
const maxFormats = 8

// Entry is the bootloader-neutral view of a single memory map entry.
type Entry struct {
	Base   mm.PhysAddr
	Length uint64
	Usable bool
}

// Format describes a bootloader-native memory map layout.
type Format struct {
	Name string

	// EntrySize is the distance in bytes between consecutive entries.
	EntrySize uintptr

	// Decode converts the entry that starts at the beginning of the
	// supplied window.
	Decode func(entry mm.Window) Entry
}

// Limine memory map entry types.
const (
	limineUsable uint64 = iota
	limineReserved
	limineACPIReclaimable
	limineACPINVS
	limineBadMemory
	limineBootloaderReclaimable
	limineKernelAndModules
	limineFramebuffer
)

// Region kinds of the bootloader crate. Values past bootInfoBootloader carry
// a firmware-specific payload and are never usable.
const (
	bootInfoUsable uint32 = iota
	bootInfoBootloader
	bootInfoUnknownUefi
	bootInfoUnknownBios
)

// multibootAvailable is the multiboot2 type of RAM that is free to use.
const multibootAvailable uint32 = 1

var (
	// limineFormat decodes {base u64, length u64, type u64} entries.
	// Bootloader-reclaimable memory is reported as reserved since the
	// memory map, stacks and the Boot Contract itself may live there.
	limineFormat = Format{
		Name:      "limine",
		EntrySize: 24,
		Decode: func(entry mm.Window) Entry {
			return Entry{
				Base:   mm.PhysAddr(entry.Load64(0)),
				Length: entry.Load64(8),
				Usable: entry.Load64(16) == limineUsable,
			}
		},
	}

	// bootInfoFormat decodes {start u64, end u64, kind u32, payload u32}
	// regions.
	bootInfoFormat = Format{
		Name:      "bootinfo",
		EntrySize: 24,
		Decode: func(entry mm.Window) Entry {
			start, end := entry.Load64(0), entry.Load64(8)
			if end < start {
				end = start
			}
			return Entry{
				Base:   mm.PhysAddr(start),
				Length: end - start,
				Usable: entry.Load32(16) == bootInfoUsable,
			}
		},
	}

	// multibootFormat decodes {base u64, length u64, type u32, reserved u32}
	// multiboot2 memory map entries.
	multibootFormat = Format{
		Name:      "multiboot",
		EntrySize: 24,
		Decode: func(entry mm.Window) Entry {
			return Entry{
				Base:   mm.PhysAddr(entry.Load64(0)),
				Length: entry.Load64(8),
				Usable: entry.Load32(16) == multibootAvailable,
			}
		},
	}

	formats = [maxFormats]*Format{
		boot.MemoryMapLimine:    &limineFormat,
		boot.MemoryMapBootInfo:  &bootInfoFormat,
		boot.MemoryMapMultiboot: &multibootFormat,
	}

	errFormatTagRange = &kernel.Error{Module: "memmap", Message: "memory map format tag out of range"}
	errFormatExists   = &kernel.Error{Module: "memmap", Message: "memory map format tag already registered"}
	errInvalidFormat  = &kernel.Error{Module: "memmap", Message: "memory map format without a decoder or entry size"}
)

// RegisterFormat adds a decoder for a new memory map tag. It must be called
// before the memory map gets read.
func RegisterFormat(tag boot.MemoryMapType, format *Format) *kernel.Error {
	switch {
	case tag >= maxFormats:
		return errFormatTagRange
	case format == nil || format.Decode == nil || format.EntrySize == 0:
		return errInvalidFormat
	case formats[tag] != nil:
		return errFormatExists
	}

	formats[tag] = format
	return nil
}

func lookupFormat(tag boot.MemoryMapType) *Format {
	if tag >= maxFormats {
		return nil
	}
	return formats[tag]
}
