package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers. It must fit a
// 64-bit value printed in base 2.
const maxBufSize = 65

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf [maxBufSize]byte

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer captures Printf output until an output sink (e.g.
	// the serial port) gets attached.
	earlyPrintBuffer ringBuffer

	// outputSink is the io.Writer where Printf sends its output. While nil,
	// output is redirected to earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf provides a minimal Printf implementation that can be safely used
// before the Go runtime has been properly initialized. This implementation
// does not allocate any memory.
//
// The following subset of the fmt verbs is supported:
//
//	%s the uninterpreted bytes of a string or byte slice
//	%b base 2
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Strings and base-10 integers are left-padded with spaces while the
// other integer bases are left-padded with zeroes.
//
// Only the built-in integer kinds are recognized. Named types (e.g.
// mm.PhysAddr) must be converted to their underlying kind by the caller as
// Printf cannot use reflection without triggering allocations.
//
// If no output sink has been set, the output is buffered into a ring buffer
// and replayed once SetOutputSink is invoked.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextArgIndex int
		padLen       int
		fmtLen       = len(format)
	)

	for index := 0; index < fmtLen; index++ {
		if format[index] != '%' {
			// passing a substring of format to doWrite triggers a
			// memory allocation so this is done one byte at a time.
			singleByte[0] = format[index]
			doWrite(w, singleByte)
			continue
		}

		padLen = 0
		for index++; index < fmtLen && format[index] >= '0' && format[index] <= '9'; index++ {
			padLen = (padLen * 10) + int(format[index]-'0')
		}

		if index == fmtLen {
			doWrite(w, errNoVerb)
			break
		}

		verb := format[index]
		switch verb {
		case '%':
			singleByte[0] = '%'
			doWrite(w, singleByte)
			continue
		case 'b', 'o', 'd', 'x', 's', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if nextArgIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'b':
			fmtInt(w, args[nextArgIndex], 2, padLen)
		case 'o':
			fmtInt(w, args[nextArgIndex], 8, padLen)
		case 'd':
			fmtInt(w, args[nextArgIndex], 10, padLen)
		case 'x':
			fmtInt(w, args[nextArgIndex], 16, padLen)
		case 's':
			fmtString(w, args[nextArgIndex], padLen)
		case 't':
			fmtBool(w, args[nextArgIndex])
		}
		nextArgIndex++
	}

	for ; nextArgIndex < len(args); nextArgIndex++ {
		doWrite(w, errExtraArg)
	}
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		for i := 0; i < len(castedVal); i++ {
			singleByte[0] = castedVal[i]
			doWrite(w, singleByte)
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	singleByte[0] = ch
	for i := 0; i < count; i++ {
		doWrite(w, singleByte)
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen.
func fmtInt(w io.Writer, v interface{}, base uint64, padLen int) {
	var (
		uval     uint64
		negative bool
		padCh    byte = '0'
	)

	if base == 10 {
		padCh = ' '
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	switch t := v.(type) {
	case uint8:
		uval = uint64(t)
	case uint16:
		uval = uint64(t)
	case uint32:
		uval = uint64(t)
	case uint64:
		uval = t
	case uint:
		uval = uint64(t)
	case uintptr:
		uval = uint64(t)
	case int8:
		uval, negative = absInt(int64(t))
	case int16:
		uval, negative = absInt(int64(t))
	case int32:
		uval, negative = absInt(int64(t))
	case int64:
		uval, negative = absInt(t)
	case int:
		uval, negative = absInt(int64(t))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	// Digits are generated right to left starting from the end of the buffer
	start := maxBufSize
	for {
		digit := uval % base
		start--
		if digit < 10 {
			numFmtBuf[start] = byte(digit) + '0'
		} else {
			numFmtBuf[start] = byte(digit-10) + 'a'
		}

		if uval /= base; uval == 0 {
			break
		}
	}

	// Space padding goes before the sign; zero padding goes after it.
	digits := maxBufSize - start
	if negative {
		digits++
	}

	if negative && padCh == '0' {
		for ; digits < padLen; digits++ {
			start--
			numFmtBuf[start] = padCh
		}
		start--
		numFmtBuf[start] = '-'
	} else {
		if negative {
			start--
			numFmtBuf[start] = '-'
		}
		for ; digits < padLen; digits++ {
			start--
			numFmtBuf[start] = padCh
		}
	}

	doWrite(w, numFmtBuf[start:])
}

func absInt(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without this hack, the compiler cannot detect
// that p does not escape (due to the call to the yet unknown outputSink
// io.Writer) and flags it as escaping, which causes a heap allocation
// for every Printf call made before the Go allocator is available.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
