package debug

import (
	"testing"

	"microdragon/kernel"
	"microdragon/kernel/kfmt"
)

func TestAssert(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
	}()

	var panicErr interface{}
	panicFn = func(e interface{}) {
		panicErr = e
	}

	expErr := &kernel.Error{Module: "test", Message: "out of bounds"}

	Assert(true, expErr)
	if panicErr != nil {
		t.Fatal("expected Assert not to panic when the condition holds")
	}

	Assert(false, expErr)
	switch {
	case Enabled && panicErr != expErr:
		t.Fatalf("expected Assert to panic with %v; got %v", expErr, panicErr)
	case !Enabled && panicErr != nil:
		t.Fatalf("expected Assert to be a no-op in release builds; got panic with %v", panicErr)
	}
}
