package module

import (
	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/debug"
	"microdragon/kernel/kfmt"
)

// State describes how far bring-up has progressed.
type State uint8

const (
	// Uninitialized is the state before any constructor has run.
	Uninitialized State = iota

	// InitComplete is reached once every init constructor has returned.
	InitComplete

	// MappingEstablished is reached once the kernel address space has been
	// verified as active.
	MappingEstablished

	// Ready is reached once every rewire constructor has returned.
	Ready
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case InitComplete:
		return "init complete"
	case MappingEstablished:
		return "mapping established"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

var (
	errPhaseOrder   = &kernel.Error{Module: "module", Message: "constructor phase invoked out of order"}
	errUnsortedList = &kernel.Error{Module: "module", Message: "constructor sequence is not sorted by order"}

	// Constructors run before any allocator exists so the banner is built
	// in package data.
	banner    bannerBuffer
	bannerLog = kfmt.PrefixWriter{Level: kfmt.LevelInfo}

	runningMsg = []byte("running\n")
)

// bannerBuffer is an append-only buffer over a fixed array. Appends past
// its capacity are truncated.
type bannerBuffer struct {
	data [128]byte
	len  int
}

func (b *bannerBuffer) writeString(s string) {
	b.len += copy(b.data[b.len:], s)
}

func (b *bannerBuffer) writeUint(v uint64) {
	var (
		digits [20]byte
		start  = len(digits)
	)

	for {
		start--
		digits[start] = byte(v%10) + '0'
		if v /= 10; v == 0 {
			break
		}
	}

	b.len += copy(b.data[b.len:], digits[start:])
}

func (b *bannerBuffer) reset() {
	b.len = 0
}

func (b *bannerBuffer) bytes() []byte {
	return b.data[:b.len]
}

// Runner drives the constructor phases through
// Uninitialized -> InitComplete -> MappingEstablished -> Ready.
type Runner struct {
	state State
}

// State returns the current runner state.
func (r *Runner) State() State {
	return r.state
}

// RunInit runs the init constructors in seq. It may only be called once,
// before any other phase.
func (r *Runner) RunInit(bc *boot.Contract, seq Sequence) *kernel.Error {
	if r.state != Uninitialized {
		return errPhaseOrder
	}

	run(bc, PhaseInit, seq)
	r.state = InitComplete
	return nil
}

// MarkMappingEstablished records that the kernel address space is active.
// It may only be called after RunInit.
func (r *Runner) MarkMappingEstablished() *kernel.Error {
	if r.state != InitComplete {
		return errPhaseOrder
	}

	r.state = MappingEstablished
	return nil
}

// RunRewire runs the rewire constructors in seq. It may only be called once
// the kernel mapping has been established.
func (r *Runner) RunRewire(bc *boot.Contract, seq Sequence) *kernel.Error {
	if r.state != MappingEstablished {
		return errPhaseOrder
	}

	run(bc, PhaseRewire, seq)
	r.state = Ready
	return nil
}

// run invokes each constructor in seq, announcing it through a prefixed
// writer. Banners are assembled by hand since kfmt.Fprintf would box its
// arguments.
func run(bc *boot.Contract, phase Phase, seq Sequence) {
	if debug.Enabled {
		debug.Assert(seq.sorted(), errUnsortedList)
	}

	for _, ctor := range seq {
		banner.reset()
		banner.writeString("[module] ")
		banner.writeString(ctor.Name)
		banner.writeString("(")
		banner.writeString(phase.String())
		banner.writeString(", order ")
		banner.writeUint(ctor.Order)
		banner.writeString("): ")
		bannerLog.Prefix = banner.bytes()

		bannerLog.Write(runningMsg)
		ctor.Fn(bc)
	}
}
