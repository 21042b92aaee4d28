package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{
			"",
			"",
		},
		{
			"\n",
			"[kmm] \n",
		},
		{
			"no line break anywhere",
			"[kmm] no line break anywhere",
		},
		{
			"line feed at the end\n",
			"[kmm] line feed at the end\n",
		},
		{
			"\nusable region\n0x100000\n0x7fe0000\ndone",
			"[kmm] \n[kmm] usable region\n[kmm] 0x100000\n[kmm] 0x7fe0000\n[kmm] done",
		},
	}

	var (
		buf bytes.Buffer
		w   = PrefixWriter{
			Sink:   &buf,
			Prefix: []byte("[kmm] "),
		}
	)

	for specIndex, spec := range specs {
		buf.Reset()
		w.bytesAfterPrefix = 0

		wrote, err := w.Write([]byte(spec.input))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if expLen := len(spec.input); expLen != wrote {
			t.Errorf("[spec %d] expected writer to write %d bytes; wrote %d", specIndex, expLen, wrote)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestPrefixWriterWithFprintf(t *testing.T) {
	var (
		buf bytes.Buffer
		w   = PrefixWriter{Sink: &buf, Prefix: []byte("[acpi] ")}
	)

	Fprintf(&w, "found RSDP at 0x%x\nrevision %d\n", uint64(0xe0000), 2)

	exp := "[acpi] found RSDP at 0xe0000\n[acpi] revision 2\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrefixWriterErrors(t *testing.T) {
	specs := []string{
		"no line break anywhere",
		"\nthe big brown\nfog jumped\nover the lazy\ndog",
	}

	var (
		expErr = errors.New("write failed")
		w      = PrefixWriter{
			Sink:   writerThatAlwaysErrors{expErr},
			Prefix: []byte("prefix: "),
		}
	)

	for specIndex, spec := range specs {
		w.bytesAfterPrefix = 0
		_, err := w.Write([]byte(spec))
		if err != expErr {
			t.Errorf("[spec %d] expected error: %v; got %v", specIndex, expErr, err)
		}
	}
}

type writerThatAlwaysErrors struct {
	err error
}

func (w writerThatAlwaysErrors) Write(_ []byte) (int, error) {
	return 0, w.err
}

func TestPrefixWriterFollowsOutputSink(t *testing.T) {
	defer func() {
		outputSink = nil
		earlyPrintBuffer.rIndex = 0
		earlyPrintBuffer.wIndex = 0
	}()
	earlyPrintBuffer.rIndex = 0
	earlyPrintBuffer.wIndex = 0

	w := PrefixWriter{Prefix: []byte("[kmm] ")}
	Fprintf(&w, "early\n")

	var buf bytes.Buffer
	SetOutputSink(&buf)
	Fprintf(&w, "late\n")

	exp := "[kmm] early\n[kmm] late\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrefixWriterLevels(t *testing.T) {
	defer SetMaxLevel(LevelInfo)

	specs := []struct {
		maxLevel Level
		level    Level
		exp      string
	}{
		{LevelInfo, LevelNone, "[kmm] mapped\n[kmm] done\n"},
		{LevelInfo, LevelError, "ERROR [kmm] mapped\nERROR [kmm] done\n"},
		{LevelInfo, LevelWarn, " WARN [kmm] mapped\n WARN [kmm] done\n"},
		{LevelInfo, LevelInfo, " INFO [kmm] mapped\n INFO [kmm] done\n"},
		{LevelInfo, LevelDebug, ""},
		{LevelTrace, LevelDebug, "DEBUG [kmm] mapped\nDEBUG [kmm] done\n"},
		{LevelTrace, LevelTrace, "TRACE [kmm] mapped\nTRACE [kmm] done\n"},
		{LevelError, LevelWarn, ""},
		{LevelError, LevelNone, "[kmm] mapped\n[kmm] done\n"},
	}

	for specIndex, spec := range specs {
		var (
			buf bytes.Buffer
			w   = PrefixWriter{Sink: &buf, Prefix: []byte("[kmm] "), Level: spec.level}
		)

		SetMaxLevel(spec.maxLevel)
		n, err := w.Write([]byte("mapped\ndone\n"))
		if err != nil || n != 12 {
			t.Errorf("[spec %d] expected (12, nil); got (%d, %v)", specIndex, n, err)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}
