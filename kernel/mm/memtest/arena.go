//go:build unix

// Package memtest provides simulated physical memory for tests of the
// memory management packages. An Arena is an anonymous, page-aligned mmap
// region that pretends to live at a chosen physical base address; tests
// point mm.PhysToVirt at it via mm.SetPhysOffset.
package memtest

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"microdragon/kernel/mm"
)

// Arena is a block of host memory standing in for physical RAM.
type Arena struct {
	mem      []byte
	physBase mm.PhysAddr
}

// NewArena maps pages of anonymous memory and associates them with the
// physical range starting at physBase. physBase must be page-aligned.
func NewArena(physBase mm.PhysAddr, pages int) (*Arena, error) {
	mem, err := unix.Mmap(-1, 0, pages*mm.PageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	return &Arena{mem: mem, physBase: physBase}, nil
}

// Close unmaps the arena memory. The arena must not be accessed afterwards.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}

// PhysBase returns the physical address of the first arena byte.
func (a *Arena) PhysBase() mm.PhysAddr { return a.physBase }

// PhysEnd returns the first physical address past the arena.
func (a *Arena) PhysEnd() mm.PhysAddr { return a.physBase + mm.PhysAddr(len(a.mem)) }

// Region returns the physical region covered by pages [first, first+count)
// of the arena.
func (a *Arena) Region(first, count int) mm.Region {
	return mm.Region{
		Base:   a.physBase + mm.PhysAddr(first*mm.PageSize),
		Length: uint64(count * mm.PageSize),
	}
}

// Offset returns the value to pass to mm.SetPhysOffset so that
// mm.PhysToVirt resolves physical addresses inside the arena.
func (a *Arena) Offset() uintptr {
	return uintptr(unsafe.Pointer(&a.mem[0])) - uintptr(a.physBase)
}

// Activate points mm.PhysToVirt at the arena and returns a function that
// restores the previous translation offset.
func (a *Arena) Activate() (restore func()) {
	prev := mm.PhysOffset()
	mm.SetPhysOffset(a.Offset())
	return func() { mm.SetPhysOffset(prev) }
}

// Bytes returns a slice over n bytes of the arena starting at physical
// address addr.
func (a *Arena) Bytes(addr mm.PhysAddr, n int) []byte {
	start := int(addr - a.physBase)
	return a.mem[start : start+n]
}

// Fill sets every byte of the arena to value. Tests fill arenas with junk to
// verify that memory handed out by the allocators is explicitly cleared.
func (a *Arena) Fill(value byte) {
	for i := range a.mem {
		a.mem[i] = value
	}
}
