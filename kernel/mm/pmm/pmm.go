// Package pmm implements the physical memory manager. It is seeded once from
// the usable regions decoded from the bootloader memory map and registers
// itself as the frame source for the rest of the memory subsystem.
package pmm

import (
	"microdragon/kernel"
	"microdragon/kernel/cpu"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
	"microdragon/kernel/sync"
)

var (
	// frameAllocator is the allocator instance installed by Init.
	frameAllocator FrameAllocator

	// activeAllocator is set once Init succeeds.
	activeAllocator sync.Cell[*FrameAllocator]

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	panicFn                    = kfmt.Panic
	saveAndDisableInterruptsFn = cpu.SaveAndDisableInterrupts
	restoreInterruptsFn        = cpu.RestoreInterrupts

	errAlreadyInitialized = &kernel.Error{Module: "pmm", Message: "physical memory manager already initialized"}
	errNotInitialized     = &kernel.Error{Module: "pmm", Message: "physical memory manager not initialized"}
)

// Init seeds the physical memory manager with the supplied usable regions
// and registers it via mm.SetFrameAllocator. Init may only be called once;
// a second call returns an error which callers must treat as fatal.
func Init(regions []mm.Region) *kernel.Error {
	if activeAllocator.IsSet() {
		return errAlreadyInitialized
	}

	if err := frameAllocator.init(regions); err != nil {
		return err
	}

	if err := activeAllocator.Set(&frameAllocator); err != nil {
		return errAlreadyInitialized
	}

	mm.SetFrameAllocator(AllocFrame)

	kfmt.Printf("[pmm] managing %d frames (%d KiB) in %d pools\n",
		frameAllocator.totalFrames,
		frameAllocator.totalFrames*(mm.PageSize/uint64(mm.Kb)),
		frameAllocator.poolCount,
	)
	return nil
}

// AllocFrame reserves a physical frame. It is safe to call from any context
// once Init has returned; interrupts are masked while the allocator lock is
// held.
func AllocFrame() (mm.Frame, *kernel.Error) {
	alloc, ok := activeAllocator.Get()
	if !ok {
		return mm.InvalidFrame, errNotInitialized
	}

	irqState := saveAndDisableInterruptsFn()
	alloc.lock.Acquire()
	frame, err := alloc.AllocFrame()
	alloc.lock.Release()
	restoreInterruptsFn(irqState)

	return frame, err
}

// Allocate reserves a physical frame. Running out of physical memory is not
// recoverable at this stage so any allocation failure halts the system.
func Allocate() mm.Frame {
	frame, err := AllocFrame()
	if err != nil {
		panicFn(err)
		return mm.InvalidFrame
	}

	return frame
}

// FreeFrame releases a frame obtained via AllocFrame or Allocate.
func FreeFrame(frame mm.Frame) *kernel.Error {
	alloc, ok := activeAllocator.Get()
	if !ok {
		return errNotInitialized
	}

	irqState := saveAndDisableInterruptsFn()
	alloc.lock.Acquire()
	err := alloc.FreeFrame(frame)
	alloc.lock.Release()
	restoreInterruptsFn(irqState)

	return err
}

// Stats returns the total number of managed frames and the number of frames
// that are currently free.
func Stats() (total, free uint64) {
	alloc, ok := activeAllocator.Get()
	if !ok {
		return 0, 0
	}

	irqState := saveAndDisableInterruptsFn()
	alloc.lock.Acquire()
	total, free = alloc.totalFrames, alloc.totalFrames-alloc.allocatedFrames
	alloc.lock.Release()
	restoreInterruptsFn(irqState)

	return total, free
}
