package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. Modules use it to tag their output
// (e.g. "[kmm] ").
type PrefixWriter struct {
	// A writer where all writes get sent to. If nil, writes follow the
	// output sink used by Printf.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	// Level tags each line with its severity ahead of Prefix. Writes with
	// a level more verbose than the one set via SetMaxLevel are dropped.
	Level Level

	bytesAfterPrefix int
}

// Write writes len(p) bytes from p to the underlying data stream and returns
// back the number of bytes written. The injected prefix is not included in
// the number of written bytes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	if !w.Level.enabled() {
		return len(p), nil
	}

	var (
		written    int
		startIndex int
		sink       = w.Sink
	)

	if sink == nil {
		sink = outputSink
	}

	if w.bytesAfterPrefix == 0 && len(p) != 0 {
		w.writePrefix(sink)
	}

	for curIndex := 0; curIndex < len(p); curIndex++ {
		if p[curIndex] != '\n' {
			continue
		}

		n, err := writeTo(sink, p[startIndex:curIndex+1])
		written += n
		if err != nil {
			return written, err
		}

		if curIndex+1 != len(p) {
			w.writePrefix(sink)
		}
		w.bytesAfterPrefix = 0
		startIndex = curIndex + 1
	}

	if startIndex < len(p) {
		n, err := writeTo(sink, p[startIndex:])
		written += n
		w.bytesAfterPrefix += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

func (w *PrefixWriter) writePrefix(sink io.Writer) {
	if tag := w.Level.tag(); len(tag) != 0 {
		doWrite(sink, tag)
	}
	doWrite(sink, w.Prefix)
}

// writeTo forwards p to w or to the early print buffer if w is nil.
func writeTo(w io.Writer, p []byte) (int, error) {
	if w == nil {
		return earlyPrintBuffer.Write(p)
	}
	return w.Write(p)
}
