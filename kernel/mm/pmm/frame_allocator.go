package pmm

import (
	"microdragon/kernel"
	"microdragon/kernel/mm"
	"microdragon/kernel/sync"
)

// maxPools matches the capacity of the memory map reader's region set.
const maxPools = 64

var (
	errOutOfMemory      = &kernel.Error{Module: "pmm", Message: "out of physical memory"}
	errTooManyRegions   = &kernel.Error{Module: "pmm", Message: "too many physical memory regions"}
	errFrameNotManaged  = &kernel.Error{Module: "pmm", Message: "frame not managed by this allocator"}
	errFrameNotReserved = &kernel.Error{Module: "pmm", Message: "frame has never been allocated"}
	errDoubleFree       = &kernel.Error{Module: "pmm", Message: "frame is already free"}
)

type framePool struct {
	// startFrame is the first frame in this pool.
	startFrame mm.Frame

	// endFrame is the last frame in this pool.
	endFrame mm.Frame

	// nextFrame is the first frame in the pool that has never been handed
	// out. Frames below it are either in use or on the free list.
	nextFrame mm.Frame
}

func (p *framePool) exhausted() bool {
	return p.nextFrame > p.endFrame
}

// FrameAllocator hands out physical frames from the usable regions reported
// by the bootloader. Each region becomes a pool that is consumed in
// ascending address order; freed frames are pushed onto an intrusive free
// list whose links are stored in the first 8 bytes of each free frame and
// are recycled before any untouched frames.
//
// Frames are not cleared before they are handed out.
type FrameAllocator struct {
	lock sync.Spinlock

	pools     [maxPools]framePool
	poolCount int

	// curPool is the index of the first pool that is not exhausted.
	curPool int

	// freeListHead is the most recently freed frame or mm.InvalidFrame if
	// the free list is empty.
	freeListHead mm.Frame

	totalFrames     uint64
	allocatedFrames uint64
}

// init sets up one pool per region. Regions must be page-aligned and
// disjoint.
func (alloc *FrameAllocator) init(regions []mm.Region) *kernel.Error {
	*alloc = FrameAllocator{freeListHead: mm.InvalidFrame}

	for _, region := range regions {
		if region.FrameCount() == 0 {
			continue
		}

		if alloc.poolCount == maxPools {
			return errTooManyRegions
		}

		startFrame := mm.FrameFromAddress(region.Base)
		alloc.pools[alloc.poolCount] = framePool{
			startFrame: startFrame,
			endFrame:   startFrame + mm.Frame(region.FrameCount()) - 1,
			nextFrame:  startFrame,
		}
		alloc.poolCount++
		alloc.totalFrames += region.FrameCount()
	}

	return nil
}

// AllocFrame reserves and returns a physical frame.
func (alloc *FrameAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	if frame := alloc.freeListHead; frame.Valid() {
		alloc.freeListHead = mm.Frame(mm.FrameWindow(frame).Load64(0))
		alloc.allocatedFrames++
		return frame, nil
	}

	for ; alloc.curPool < alloc.poolCount; alloc.curPool++ {
		pool := &alloc.pools[alloc.curPool]
		if pool.exhausted() {
			continue
		}

		frame := pool.nextFrame
		pool.nextFrame++
		alloc.allocatedFrames++
		return frame, nil
	}

	return mm.InvalidFrame, errOutOfMemory
}

// FreeFrame returns a frame previously obtained via AllocFrame to the
// allocator. Freeing a frame that is already on the free list fails with
// errDoubleFree and leaves the allocator untouched.
func (alloc *FrameAllocator) FreeFrame(frame mm.Frame) *kernel.Error {
	poolIndex := alloc.poolForFrame(frame)
	if poolIndex < 0 {
		return errFrameNotManaged
	}

	if frame >= alloc.pools[poolIndex].nextFrame {
		return errFrameNotReserved
	}

	if alloc.onFreeList(frame) {
		return errDoubleFree
	}

	mm.FrameWindow(frame).Store64(0, uint64(alloc.freeListHead))
	alloc.freeListHead = frame
	alloc.allocatedFrames--
	return nil
}

// poolForFrame returns the index of the pool that contains frame or -1 if
// the frame is not managed by this allocator.
func (alloc *FrameAllocator) poolForFrame(frame mm.Frame) int {
	for poolIndex := 0; poolIndex < alloc.poolCount; poolIndex++ {
		if frame >= alloc.pools[poolIndex].startFrame && frame <= alloc.pools[poolIndex].endFrame {
			return poolIndex
		}
	}

	return -1
}

// onFreeList walks the free list looking for frame.
func (alloc *FrameAllocator) onFreeList(frame mm.Frame) bool {
	for cur := alloc.freeListHead; cur.Valid(); cur = mm.Frame(mm.FrameWindow(cur).Load64(0)) {
		if cur == frame {
			return true
		}
	}

	return false
}
