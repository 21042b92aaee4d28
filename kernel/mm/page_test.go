package mm

import (
	"testing"

	"microdragon/kernel"
)

func TestFrameAddressConversions(t *testing.T) {
	specs := []struct {
		addr      PhysAddr
		frame     Frame
		frameBase PhysAddr
	}{
		{0, 0, 0},
		{0xfff, 0, 0},
		{0x100000, 0x100, 0x100000},
		{0xe0010, 0xe0, 0xe0000},
		{0xfd000123, 0xfd000, 0xfd000000},
		{0x000ffffffffff000, 0xffffffffff, 0x000ffffffffff000},
	}

	for specIndex, spec := range specs {
		frame := FrameFromAddress(spec.addr)
		if frame != spec.frame {
			t.Errorf("[spec %d] expected frame for 0x%x to be 0x%x; got 0x%x", specIndex, spec.addr, spec.frame, frame)
			continue
		}

		if !frame.Valid() {
			t.Errorf("[spec %d] expected frame 0x%x to be valid", specIndex, frame)
		}

		if got := frame.Address(); got != spec.frameBase {
			t.Errorf("[spec %d] expected frame 0x%x to start at 0x%x; got 0x%x", specIndex, frame, spec.frameBase, got)
		}
	}

	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame to be reported as invalid")
	}
}

func TestPageAddressConversions(t *testing.T) {
	specs := []struct {
		addr     VirtAddr
		page     Page
		pageBase VirtAddr
	}{
		{0, 0, 0},
		{0x1234, 1, 0x1000},
		{0xffffc00000000000, 0xffffc00000000000 >> PageShift, 0xffffc00000000000},
		{0xffffc000fd000fff, 0xffffc000fd000000 >> PageShift, 0xffffc000fd000000},
	}

	for specIndex, spec := range specs {
		page := PageFromAddress(spec.addr)
		if page != spec.page {
			t.Errorf("[spec %d] expected page for 0x%x to be 0x%x; got 0x%x", specIndex, spec.addr, spec.page, page)
			continue
		}

		if got := page.Address(); got != spec.pageBase {
			t.Errorf("[spec %d] expected page 0x%x to start at 0x%x; got 0x%x", specIndex, page, spec.pageBase, got)
		}
	}
}

func TestAllocFrame(t *testing.T) {
	defer SetFrameAllocator(nil)

	SetFrameAllocator(nil)
	if frame, err := AllocFrame(); err != errNoFrameAllocator || frame.Valid() {
		t.Fatalf("expected (InvalidFrame, errNoFrameAllocator) without an allocator; got (0x%x, %v)", frame, err)
	}

	var (
		next       = Frame(0x100)
		errExhaust = &kernel.Error{Module: "test", Message: "out of frames"}
	)
	SetFrameAllocator(func() (Frame, *kernel.Error) {
		if next == 0x102 {
			return InvalidFrame, errExhaust
		}
		next++
		return next - 1, nil
	})

	for _, exp := range []Frame{0x100, 0x101} {
		if frame, err := AllocFrame(); err != nil || frame != exp {
			t.Fatalf("expected to allocate frame 0x%x; got (0x%x, %v)", exp, frame, err)
		}
	}

	if _, err := AllocFrame(); err != errExhaust {
		t.Fatalf("expected allocator error to be propagated; got %v", err)
	}
}
