package mm

import "sync/atomic"

// PhysAddr is a physical memory address. It cannot be dereferenced; use
// PhysToVirt to obtain a virtual alias first.
type PhysAddr uint64

// VirtAddr is a virtual memory address in the currently active address
// space.
type VirtAddr uintptr

// physOffset is added to a physical address to obtain its virtual alias.
// It is 0 (identity mapping) until either the bootloader glue installs the
// offset of the bootloader's own higher-half mapping or the kernel address
// space gets activated and switches it to the direct map base.
var physOffset uintptr

// PhysToVirt returns the virtual alias of a physical address under the
// translation that is currently authoritative. Pointers derived from it
// before the kernel address space is activated must be recomputed after
// the switch.
func PhysToVirt(addr PhysAddr) VirtAddr {
	return VirtAddr(uintptr(addr) + atomic.LoadUintptr(&physOffset))
}

// SetPhysOffset sets the offset used by PhysToVirt.
func SetPhysOffset(offset uintptr) {
	atomic.StoreUintptr(&physOffset, offset)
}

// PhysOffset returns the offset currently used by PhysToVirt.
func PhysOffset() uintptr {
	return atomic.LoadUintptr(&physOffset)
}

// AlignUp rounds addr up to the nearest page boundary.
func (addr PhysAddr) AlignUp() PhysAddr {
	return (addr + PageSize - 1) &^ (PageSize - 1)
}

// AlignDown rounds addr down to the nearest page boundary.
func (addr PhysAddr) AlignDown() PhysAddr {
	return addr &^ (PageSize - 1)
}

// Region describes a contiguous, page-aligned range of physical memory.
type Region struct {
	Base   PhysAddr
	Length uint64
}

// End returns the first physical address past the region.
func (r Region) End() PhysAddr {
	return r.Base + PhysAddr(r.Length)
}

// FrameCount returns the number of frames in the region.
func (r Region) FrameCount() uint64 {
	return r.Length >> PageShift
}

// Contains returns true if the frame lies inside the region.
func (r Region) Contains(f Frame) bool {
	addr := f.Address()
	return addr >= r.Base && addr < r.End()
}
