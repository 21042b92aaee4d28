// Package framebuffer drives the linear 32bpp framebuffer handed over by the
// bootloader. The framebuffer is reached through the early physical alias
// while the init phase runs and is re-derived from the direct map during
// the rewire phase.
package framebuffer

import (
	"image/color"

	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/debug"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
)

// bytesPerPixel is fixed as only 32bpp RGB framebuffers are supported.
const bytesPerPixel = 4

var (
	activeFb Framebuffer

	log = kfmt.PrefixWriter{Prefix: []byte("[framebuffer] ")}

	errPixelOutOfBounds = &kernel.Error{Module: "framebuffer", Message: "pixel coordinates out of bounds"}
)

// Framebuffer is a linear framebuffer with 32 bits per pixel.
type Framebuffer struct {
	physAddr mm.PhysAddr
	mem      mm.Window

	// Dimensions in pixels
	width  uint32
	height uint32

	// Size of a row in bytes
	pitch uint32

	redShift   uint8
	greenShift uint8
	blueShift  uint8
}

// Init caches the framebuffer described by the boot contract and clears it.
// It is a no-op if no framebuffer is available.
//
//kernel:constructor order=5
func Init(bc *boot.Contract) {
	info := &bc.FramebufferInfo
	if !info.Present() {
		kfmt.Fprintf(&log, "no framebuffer available\n")
		return
	}

	activeFb = Framebuffer{
		physAddr:   mm.PhysAddr(info.Address),
		width:      uint32(info.Width),
		height:     uint32(info.Height),
		pitch:      uint32(info.Pitch),
		redShift:   info.RedMaskShift,
		greenShift: info.GreenMaskShift,
		blueShift:  info.BlueMaskShift,
	}
	activeFb.remap()
	activeFb.Clear(activeFb.EncodeColor(color.RGBA{}))

	kfmt.Fprintf(&log, "%dx%d framebuffer at 0x%x\n", activeFb.width, activeFb.height, info.Address)
}

// Rewire recomputes the framebuffer pointer through the kernel direct map.
// It is a no-op if no framebuffer is available.
//
//kernel:constructor order=5 phase=rewire
func Rewire(bc *boot.Contract) {
	if !bc.FramebufferInfo.Present() || activeFb.physAddr == 0 {
		return
	}

	activeFb.remap()
	kfmt.Fprintf(&log, "remapped to 0x%x\n", uintptr(activeFb.mem.Base))
}

// Active returns the framebuffer initialized by Init or nil if no
// framebuffer is available.
func Active() *Framebuffer {
	if activeFb.physAddr == 0 {
		return nil
	}
	return &activeFb
}

// remap derives the virtual address of the framebuffer from the current
// physical to virtual translation.
func (fb *Framebuffer) remap() {
	fb.mem = mm.PhysWindow(fb.physAddr, uintptr(fb.pitch)*uintptr(fb.height))
}

// Dimensions returns the framebuffer width and height in pixels.
func (fb *Framebuffer) Dimensions() (uint32, uint32) {
	return fb.width, fb.height
}

// EncodeColor converts c into the pixel format of the framebuffer. The alpha
// channel is ignored.
func (fb *Framebuffer) EncodeColor(c color.RGBA) uint32 {
	return uint32(c.R)<<fb.redShift | uint32(c.G)<<fb.greenShift | uint32(c.B)<<fb.blueShift
}

// SetPixel sets the pixel at (x, y) to an encoded color value. Both
// coordinates are 0-based. Writes outside the framebuffer are ignored.
func (fb *Framebuffer) SetPixel(x, y uint32, pixel uint32) {
	inBounds := x < fb.width && y < fb.height
	debug.Assert(inBounds, errPixelOutOfBounds)
	if !inBounds {
		return
	}

	fb.mem.Store32(fb.offset(x, y), pixel)
}

// Clear sets every visible pixel to an encoded color value.
func (fb *Framebuffer) Clear(pixel uint32) {
	for y := uint32(0); y < fb.height; y++ {
		for x, offset := uint32(0), fb.offset(0, y); x < fb.width; x, offset = x+1, offset+bytesPerPixel {
			fb.mem.Store32(offset, pixel)
		}
	}
}

// offset returns the byte offset of the pixel at (x, y).
func (fb *Framebuffer) offset(x, y uint32) uintptr {
	return uintptr(y)*uintptr(fb.pitch) + uintptr(x)*bytesPerPixel
}
