package vmm

import (
	"bytes"
	"testing"

	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/cpu"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
	"microdragon/kernel/mm/memtest"
	"microdragon/kernel/sync"
)

const testArenaBase = mm.PhysAddr(0x100000)

var errTestOutOfFrames = &kernel.Error{Module: "vmm_test", Message: "test arena exhausted"}

// hookState records the calls made to the mocked cpu hooks.
type hookState struct {
	activePDT   uintptr
	switchedPDT []uintptr
	flushed     []uintptr
	physOffsets []uintptr
}

// mockPackageHooks resets the package state and replaces every cpu hook with
// a recording mock.
func mockPackageHooks(t *testing.T) *hookState {
	state := &hookState{}

	activePDTFn = func() uintptr { return state.activePDT }
	switchPDTFn = func(addr uintptr) { state.switchedPDT = append(state.switchedPDT, addr) }
	flushTLBEntryFn = func(addr uintptr) { state.flushed = append(state.flushed, addr) }
	setPhysOffsetFn = func(offset uintptr) { state.physOffsets = append(state.physOffsets, offset) }
	saveAndDisableInterruptsFn = func() bool { return false }
	restoreInterruptsFn = func(bool) {}
	resetPackageState()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	t.Cleanup(func() {
		activePDTFn = cpu.ActivePDT
		switchPDTFn = cpu.SwitchPDT
		flushTLBEntryFn = cpu.FlushTLBEntry
		setPhysOffsetFn = mm.SetPhysOffset
		saveAndDisableInterruptsFn = cpu.SaveAndDisableInterrupts
		restoreInterruptsFn = cpu.RestoreInterrupts
		resetPackageState()
		kfmt.SetOutputSink(nil)
	})

	return state
}

func resetPackageState() {
	activeMode = sync.Cell[PagingMode]{}
	kernelSpaceReady = sync.Cell[*AddressSpace]{}
	kernelSpace = AddressSpace{}
	mm.SetFrameAllocator(nil)
}

// newTestArena maps an arena filled with junk, points mm.PhysToVirt at it
// and registers a bump frame allocator that hands out its pages in order.
func newTestArena(t *testing.T, pages int) *memtest.Arena {
	arena, err := memtest.NewArena(testArenaBase, pages)
	if err != nil {
		t.Fatal(err)
	}
	arena.Fill(0xa5)
	restore := arena.Activate()

	next := arena.PhysBase()
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		if next >= arena.PhysEnd() {
			return mm.InvalidFrame, errTestOutOfFrames
		}
		frame := mm.FrameFromAddress(next)
		next += mm.PageSize
		return frame, nil
	})

	t.Cleanup(func() {
		mm.SetFrameAllocator(nil)
		restore()
		_ = arena.Close()
	})

	return arena
}

// countFrameAllocations replaces the arena allocator with a bump allocator
// over the same arena that also counts the frames it hands out.
func countFrameAllocations(arena *memtest.Arena) *int {
	var (
		count int
		next  = arena.PhysBase()
	)

	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		if next >= arena.PhysEnd() {
			return mm.InvalidFrame, errTestOutOfFrames
		}
		count++
		frame := mm.FrameFromAddress(next)
		next += mm.PageSize
		return frame, nil
	})

	return &count
}

func selectTestPagingMode(t *testing.T, levels uint8) PagingMode {
	info := boot.MemoryInfo{
		VirtualAddressBits:        48,
		PhysicalAddressBits:       52,
		PageTableEntryAddressMask: 0x000ffffffffff000,
		HighestPageTableLevel:     levels,
	}
	if levels == 5 {
		info.VirtualAddressBits = 57
	}

	if err := SelectPagingMode(&info); err != nil {
		t.Fatal(err)
	}

	mode, _ := ActivePagingMode()
	return mode
}
