// Package module runs the constructors that kernel modules register through
// //kernel:constructor directives. The constructor lists are produced at
// build time by tools/runnergen; this package only enforces the order in
// which the init and rewire phases execute.
package module

import "microdragon/kernel/boot"

// Phase identifies when a constructor runs.
type Phase uint8

const (
	// PhaseInit constructors run while physical memory is reached through
	// the bootloader mapping.
	PhaseInit Phase = iota

	// PhaseRewire constructors run after the kernel address space is
	// active so modules can recompute cached pointers.
	PhaseRewire
)

// String implements fmt.Stringer for Phase.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseRewire:
		return "rewire"
	default:
		return "unknown"
	}
}

// Constructor describes a module entry point.
type Constructor struct {
	// Name is the qualified name of the constructor (e.g. "kmm.Init").
	Name string

	// Order defines the position of the constructor within its phase.
	// Constructors with lower values run first.
	Order uint64

	// Fn is the constructor entry point.
	Fn func(*boot.Contract)
}

// Sequence is a list of constructors sorted by Order.
type Sequence []Constructor

// Len, Less and Swap implement sort.Interface so that generated sequences can
// be checked (or re-sorted) with sort.IsSorted and sort.Stable.
func (s Sequence) Len() int           { return len(s) }
func (s Sequence) Less(i, j int) bool { return s[i].Order < s[j].Order }
func (s Sequence) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// sorted reports whether s is in ascending order. Unlike sort.IsSorted it
// does not box s into an interface.
func (s Sequence) sorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Order < s[i-1].Order {
			return false
		}
	}
	return true
}
