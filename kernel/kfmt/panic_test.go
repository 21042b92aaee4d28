package kfmt

import (
	"bytes"
	"errors"
	"testing"

	"microdragon/kernel"
	"microdragon/kernel/cpu"
)

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var (
		haltCount int
		buf       bytes.Buffer
	)
	cpuHaltFn = func() { haltCount++ }
	SetOutputSink(&buf)

	withCause := func(module, message string) string {
		return "\n" + panicRule + "kernel panic\n  module: " + module + "\n  cause:  " + message + "\nsystem halted\n" + panicRule
	}

	specs := []struct {
		name  string
		input interface{}
		exp   string
	}{
		{"kernel error", &kernel.Error{Module: "vmm", Message: "direct map slot already in use"}, withCause("vmm", "direct map slot already in use")},
		{"go error", errors.New("index out of range"), withCause("rt", "index out of range")},
		{"string", "frame allocator exhausted", withCause("rt", "frame allocator exhausted")},
		{"nil", nil, "\n" + panicRule + "kernel panic\nsystem halted\n" + panicRule},
		{"unsupported type", 42, "\n" + panicRule + "kernel panic\nsystem halted\n" + panicRule},
	}

	for specIndex, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			buf.Reset()

			Panic(spec.input)

			if got := buf.String(); got != spec.exp {
				t.Fatalf("expected to get:\n%q\ngot:\n%q", spec.exp, got)
			}

			if haltCount != specIndex+1 {
				t.Fatalf("expected cpu.Halt to be called once per Panic; got %d calls after %d panics", haltCount, specIndex+1)
			}
		})
	}
}
