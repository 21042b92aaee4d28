package mm

import (
	"unsafe"

	"microdragon/kernel"
	"microdragon/kernel/debug"
)

var errWindowOutOfBounds = &kernel.Error{Module: "mm", Message: "memory window access out of bounds"}

// Window is a bounded view over a virtually addressed memory block. All
// raw reads and writes of page table and device memory go through a Window;
// in debug builds every access is checked against Size.
type Window struct {
	Base VirtAddr
	Size uintptr
}

// FrameWindow returns a Window over the current virtual alias of a physical
// frame.
func FrameWindow(f Frame) Window {
	return Window{Base: PhysToVirt(f.Address()), Size: PageSize}
}

// PhysWindow returns a Window over size bytes starting at the current
// virtual alias of addr.
func PhysWindow(addr PhysAddr, size uintptr) Window {
	return Window{Base: PhysToVirt(addr), Size: size}
}

// Pointer returns an unsafe pointer to the byte at offset after asserting
// that n bytes starting at offset fit in the window.
func (w Window) Pointer(offset, n uintptr) unsafe.Pointer {
	debug.Assert(offset+n <= w.Size && offset+n >= offset, errWindowOutOfBounds)
	return unsafe.Pointer(uintptr(w.Base) + offset)
}

// Load8 reads the byte at offset.
func (w Window) Load8(offset uintptr) uint8 {
	return *(*uint8)(w.Pointer(offset, 1))
}

// Load16 reads the uint16 at offset.
func (w Window) Load16(offset uintptr) uint16 {
	return *(*uint16)(w.Pointer(offset, 2))
}

// Load32 reads the uint32 at offset.
func (w Window) Load32(offset uintptr) uint32 {
	return *(*uint32)(w.Pointer(offset, 4))
}

// Load64 reads the uint64 at offset.
func (w Window) Load64(offset uintptr) uint64 {
	return *(*uint64)(w.Pointer(offset, 8))
}

// Store32 writes v at offset.
func (w Window) Store32(offset uintptr, v uint32) {
	*(*uint32)(w.Pointer(offset, 4)) = v
}

// Store64 writes v at offset.
func (w Window) Store64(offset uintptr, v uint64) {
	*(*uint64)(w.Pointer(offset, 8)) = v
}

// Fill sets every byte of the window to value.
func (w Window) Fill(value byte) {
	if w.Size == 0 {
		return
	}
	kernel.Memset(uintptr(w.Base), value, w.Size)
}

// Zero clears the window.
func (w Window) Zero() {
	w.Fill(0)
}
