// Package debug provides assertions for programmer errors that are only
// checked in debug builds (go build -tags debug). In release builds Assert
// compiles down to nothing and the guarded conditions must be prevented by
// construction.
package debug

import (
	"microdragon/kernel"
	"microdragon/kernel/kfmt"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic
)

// Assert halts the system with err if debug assertions are enabled and cond
// does not hold.
func Assert(cond bool, err *kernel.Error) {
	if Enabled && !cond {
		panicFn(err)
	}
}
