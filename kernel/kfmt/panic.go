package kfmt

import (
	"microdragon/kernel"
	"microdragon/kernel/cpu"
)

const panicRule = "================================\n"

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	// errUnknownPanic is reused for panics whose cause is not a
	// *kernel.Error so that reporting them does not allocate.
	errUnknownPanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic reports e on the active output sink and halts the CPU. Besides a
// *kernel.Error, e may be a string or an error; any other value is reported
// without a cause. On real hardware Panic never returns.
func Panic(e interface{}) {
	Printf("\n" + panicRule)
	Printf("kernel panic\n")
	if err := asKernelError(e); err != nil {
		Printf("  module: %s\n  cause:  %s\n", err.Module, err.Message)
	}
	Printf("system halted\n" + panicRule)

	cpuHaltFn()
}

func asKernelError(e interface{}) *kernel.Error {
	switch t := e.(type) {
	case *kernel.Error:
		return t
	case string:
		errUnknownPanic.Message = t
	case error:
		errUnknownPanic.Message = t.Error()
	default:
		return nil
	}

	return errUnknownPanic
}
