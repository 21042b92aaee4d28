//go:build unix

package memtest

import (
	"testing"

	"microdragon/kernel/mm"
)

func TestArena(t *testing.T) {
	arena, err := NewArena(0x400000, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer arena.Close()

	if exp := mm.PhysAddr(0x404000); arena.PhysEnd() != exp {
		t.Fatalf("expected PhysEnd to return 0x%x; got 0x%x", exp, arena.PhysEnd())
	}

	if r := arena.Region(1, 2); r.Base != 0x401000 || r.Length != 2*mm.PageSize {
		t.Fatalf("unexpected region %+v", r)
	}

	arena.Fill(0xf0)
	restore := arena.Activate()
	mm.FrameWindow(mm.FrameFromAddress(0x402000)).Store64(0, 0x1122334455667788)
	restore()

	got := arena.Bytes(0x402000, 8)
	exp := []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	for i := range exp {
		if got[i] != exp[i] {
			t.Fatalf("expected byte %d to be 0x%x; got 0x%x", i, exp[i], got[i])
		}
	}

	if b := arena.Bytes(0x401fff, 1)[0]; b != 0xf0 {
		t.Fatalf("expected neighbouring bytes to be left untouched; got 0x%x", b)
	}

	if err := arena.Close(); err != nil {
		t.Fatal(err)
	}
}
