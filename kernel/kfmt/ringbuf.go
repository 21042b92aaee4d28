package kfmt

import "io"

// ringBufferSize defines the size of the ring buffer that captures early
// Printf output. It is large enough to hold the memory map dump and the
// constructor banners emitted before the serial port is attached. The size
// must always be a power of 2.
const ringBufferSize = 16384

// ringBuffer is a fixed-size FIFO that silently overwrites its oldest
// contents once full.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write writes len(p) bytes from p to the ringBuffer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. It returns the number of bytes read
// (0 <= n <= len(p)) and io.EOF once the buffer has been drained.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.rIndex == rb.wIndex {
		return 0, io.EOF
	}

	// Read up to the write index or up to the end of the backing array,
	// whichever comes first; wrapped data is returned by the next call.
	end := rb.wIndex
	if rb.rIndex > rb.wIndex {
		end = len(rb.buffer)
	}

	n := copy(p, rb.buffer[rb.rIndex:end])
	rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
	return n, nil
}
