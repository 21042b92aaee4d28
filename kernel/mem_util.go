package kernel

import "unsafe"

// Memset sets size bytes at the given address to the supplied value. Instead
// of a byte loop, the first byte is set and then log2(size) copy calls double
// the initialized prefix which is fast for the page-aligned, page-sized
// regions the memory code works with.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}
