package cpu

import "testing"

func TestSupportsLA57(t *testing.T) {
	defer func() {
		cpuidFn = ID
	}()

	specs := []struct {
		maxLeaf uint32
		leaf7   uint32
		exp     bool
	}{
		{6, 1 << 16, false},
		{7, 0, false},
		{0xd, 1 << 16, true},
		{0xd, ^uint32(1 << 16), false},
	}

	for specIndex, spec := range specs {
		cpuidFn = func(leaf uint32) (uint32, uint32, uint32, uint32) {
			switch leaf {
			case 0:
				return spec.maxLeaf, 0, 0, 0
			case 7:
				return 0, 0, spec.leaf7, 0
			default:
				t.Fatalf("[spec %d] unexpected cpuid leaf 0x%x", specIndex, leaf)
				return 0, 0, 0, 0
			}
		}

		if got := SupportsLA57(); got != spec.exp {
			t.Errorf("[spec %d] expected SupportsLA57 to return %t; got %t", specIndex, spec.exp, got)
		}
	}
}

func TestAddressBits(t *testing.T) {
	defer func() {
		cpuidFn = ID
	}()

	specs := []struct {
		maxExtLeaf     uint32
		addrSizes      uint32
		expPhys, expVA uint8
	}{
		{0x80000004, 0, 52, 48},
		{0x80000008, 0x3027, 39, 48},
		{0x80000008, 0x3934, 52, 57},
	}

	for specIndex, spec := range specs {
		cpuidFn = func(leaf uint32) (uint32, uint32, uint32, uint32) {
			if leaf == 0x80000000 {
				return spec.maxExtLeaf, 0, 0, 0
			}
			return spec.addrSizes, 0, 0, 0
		}

		phys, va := AddressBits()
		if phys != spec.expPhys || va != spec.expVA {
			t.Errorf("[spec %d] expected address bits (%d, %d); got (%d, %d)", specIndex, spec.expPhys, spec.expVA, phys, va)
		}
	}
}

func TestSaveAndRestoreInterrupts(t *testing.T) {
	defer func() {
		interruptsEnabledFn = InterruptsEnabled
		disableInterruptsFn = DisableInterrupts
		enableInterruptsFn = EnableInterrupts
	}()

	for _, enabled := range []bool{true, false} {
		var disableCalls, enableCalls int
		interruptsEnabledFn = func() bool { return enabled }
		disableInterruptsFn = func() { disableCalls++ }
		enableInterruptsFn = func() { enableCalls++ }

		state := SaveAndDisableInterrupts()
		if state != enabled {
			t.Errorf("expected saved state to be %t; got %t", enabled, state)
		}
		RestoreInterrupts(state)

		expCalls := 0
		if enabled {
			expCalls = 1
		}
		if disableCalls != expCalls || enableCalls != expCalls {
			t.Errorf("[enabled=%t] expected %d disable/enable calls; got %d/%d", enabled, expCalls, disableCalls, enableCalls)
		}
	}
}
