package kfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRingBufferReplay(t *testing.T) {
	var rb ringBuffer

	lines := []string{
		"[kmm] usable memory map:\n",
		"\t[0x0000000000100000 - 0x0000000007ffffff], size:  133169152\n",
		"[vmm] using 4-level paging (48-bit virtual addresses)\n",
	}
	for _, line := range lines {
		if n, err := rb.Write([]byte(line)); err != nil || n != len(line) {
			t.Fatalf("expected Write to accept %d bytes; got %d, %v", len(line), n, err)
		}
	}

	var out bytes.Buffer
	if _, err := io.Copy(&out, &rb); err != nil {
		t.Fatal(err)
	}

	if exp := strings.Join(lines, ""); out.String() != exp {
		t.Fatalf("expected replayed output:\n%q\ngot:\n%q", exp, out.String())
	}

	if n, err := rb.Read(make([]byte, 8)); n != 0 || err != io.EOF {
		t.Fatalf("expected a drained buffer to return (0, io.EOF); got (%d, %v)", n, err)
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	var (
		rb  ringBuffer
		msg = []byte("serial attached")
	)

	// Start close to the end of the backing array so the message wraps.
	rb.rIndex, rb.wIndex = ringBufferSize-4, ringBufferSize-4
	rb.Write(msg)

	if exp := len(msg) - 4; rb.wIndex != exp {
		t.Fatalf("expected wIndex to wrap to %d; got %d", exp, rb.wIndex)
	}

	// The first read stops at the end of the array.
	chunk := make([]byte, 64)
	n, _ := rb.Read(chunk)
	if got := string(chunk[:n]); got != "seri" {
		t.Fatalf("expected first read to return %q; got %q", "seri", got)
	}

	n, _ = rb.Read(chunk)
	if got := string(chunk[:n]); got != "al attached" {
		t.Fatalf("expected second read to return %q; got %q", "al attached", got)
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	var rb ringBuffer

	// Fill the buffer with a marker and then overflow it by a known amount.
	rb.Write(bytes.Repeat([]byte{'a'}, ringBufferSize-1))
	rb.Write([]byte("0123456789"))

	data, err := io.ReadAll(&rb)
	if err != nil {
		t.Fatal(err)
	}

	// One slot always stays free to tell a full buffer from an empty one.
	if exp := ringBufferSize - 1; len(data) != exp {
		t.Fatalf("expected to read back %d bytes; got %d", exp, len(data))
	}

	if !bytes.HasSuffix(data, []byte("0123456789")) {
		t.Fatalf("expected the newest bytes to be retained; got suffix %q", data[len(data)-10:])
	}

	if exp := ringBufferSize - 1 - 10; bytes.Count(data, []byte{'a'}) != exp {
		t.Fatalf("expected %d of the oldest bytes to survive; got %d", exp, bytes.Count(data, []byte{'a'}))
	}
}
