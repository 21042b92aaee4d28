// Package kmain contains the kernel entry point. The init and rewire
// constructor sequences it runs are generated by tools/runnergen into
// zz_runner.go.
package kmain

//go:generate go run microdragon/tools/runnergen -root ../.. -out zz_runner.go -goarch amd64 -goos linux

import (
	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/debug"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm/vmm"
	"microdragon/kernel/module"
)

var (
	runner module.Runner

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	panicFn             = kfmt.Panic
	kernelSpaceActiveFn = vmm.KernelSpaceActive

	errMappingNotLive = &kernel.Error{Module: "kmain", Message: "kernel address space not active after the init phase"}
)

// Kmain is the kernel entry point. It is invoked by the bootloader glue once
// a boot contract has been filled in. Kmain validates the contract, runs the
// init constructors, verifies that the kernel address space is live and then
// runs the rewire constructors.
//
// Any failure is fatal. Kmain returns once bring-up completes; the caller is
// expected to halt the CPU.
//
//go:noinline
func Kmain(bc *boot.Contract) {
	if debug.Enabled {
		kfmt.SetMaxLevel(kfmt.LevelDebug)
	}

	if err := bringUp(bc, initSequence, rewireSequence); err != nil {
		panicFn(err)
		return
	}

	kfmt.Printf("[kmain] bring-up complete\n")
}

func bringUp(bc *boot.Contract, initSeq, rewireSeq module.Sequence) *kernel.Error {
	if err := bc.Validate(); err != nil {
		return err
	}

	if err := runner.RunInit(bc, initSeq); err != nil {
		return err
	}

	if !kernelSpaceActiveFn() {
		return errMappingNotLive
	}

	if err := runner.MarkMappingEstablished(); err != nil {
		return err
	}

	return runner.RunRewire(bc, rewireSeq)
}
