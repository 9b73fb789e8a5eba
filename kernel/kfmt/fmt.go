// Package kfmt implements the console output primitive used by code that runs
// at exception priority. Nothing in this package allocates once the package
// variables are initialized, so it is safe to call from a fault handler
// before (or without) the Go allocator being usable.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize bounds the width of a single formatted number.
const numBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numBuf  [numBufSize]byte
	byteBuf [1]byte

	// earlyOutput captures everything printed while no sink is attached.
	earlyOutput ringBuffer

	// outputSink receives all Printf output. A nil sink redirects output to
	// earlyOutput.
	outputSink io.Writer
)

// SetOutputSink routes Printf output to w. Output captured while no sink was
// attached is replayed to w first.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyOutput)
	}
}

// GetOutputSink returns the writer Printf currently writes to.
func GetOutputSink() io.Writer {
	if outputSink == nil {
		return &earlyOutput
	}
	return outputSink
}

// Printf writes formatted output to the active sink. It supports a subset of
// the fmt verbs:
//
//	%s  string or []byte
//	%d  base 10 integer
//	%x  base 16 integer, lower-case digits
//	%o  base 8 integer
//	%t  bool
//	%%  literal percent sign
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are padded with spaces, base-8 and base-16 integers with zeroes.
// Only built-in integer, string, []byte and bool arguments are understood;
// anything else prints %!(WRONGTYPE).
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf is Printf with an explicit destination. A nil w writes to the
// early output buffer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
		i        int
		n        = len(format)
	)

	for i < n {
		ch := format[i]
		if ch != '%' {
			writeByte(w, ch)
			i++
			continue
		}

		width = 0
		for i++; i < n && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i >= n {
			write(w, errNoVerb)
			break
		}

		verb := format[i]
		i++

		switch verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'x', 'o', 's', 't':
		default:
			write(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			write(w, errMissingArg)
			continue
		}

		arg := args[argIndex]
		argIndex++

		switch verb {
		case 'd':
			fmtInt(w, arg, 10, width)
		case 'x':
			fmtInt(w, arg, 16, width)
		case 'o':
			fmtInt(w, arg, 8, width)
		case 's':
			fmtString(w, arg, width)
		case 't':
			fmtBool(w, arg)
		}
	}

	for ; argIndex < len(args); argIndex++ {
		write(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		write(w, errWrongArgType)
	case b:
		write(w, trueValue)
	default:
		write(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		pad(w, ' ', width-len(s))
		// string to []byte conversion allocates
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		pad(w, ' ', width-len(s))
		write(w, s)
	default:
		write(w, errWrongArgType)
	}
}

func pad(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt renders v in base using the shared number buffer. Numbers are built
// right to left so no reversal pass is needed.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		mag uint64
		neg bool
	)

	switch x := v.(type) {
	case uint8:
		mag = uint64(x)
	case uint16:
		mag = uint64(x)
	case uint32:
		mag = uint64(x)
	case uint64:
		mag = x
	case uint:
		mag = uint64(x)
	case uintptr:
		mag = uint64(x)
	case int8:
		mag, neg = abs(int64(x))
	case int16:
		mag, neg = abs(int64(x))
	case int32:
		mag, neg = abs(int64(x))
	case int64:
		mag, neg = abs(x)
	case int:
		mag, neg = abs(int64(x))
	default:
		write(w, errWrongArgType)
		return
	}

	if width > numBufSize-1 {
		width = numBufSize - 1
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	pos := numBufSize
	for {
		pos--
		digit := byte(mag % base)
		if digit < 10 {
			numBuf[pos] = '0' + digit
		} else {
			numBuf[pos] = 'a' + digit - 10
		}
		mag /= base
		if mag == 0 {
			break
		}
	}

	// zero padding goes between the sign and the digits; space padding goes
	// before the sign.
	if neg && padCh == '0' {
		for numBufSize-pos < width-1 {
			pos--
			numBuf[pos] = '0'
		}
		pos--
		numBuf[pos] = '-'
	} else {
		if neg {
			pos--
			numBuf[pos] = '-'
		}
		for numBufSize-pos < width {
			pos--
			numBuf[pos] = padCh
		}
	}

	write(w, numBuf[pos:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeByte(w io.Writer, b byte) {
	byteBuf[0] = b
	write(w, byteBuf[:])
}

// write hides p from escape analysis. Passing p straight to an interface
// method makes the compiler move every caller's buffer to the heap.
func write(w io.Writer, p []byte) {
	realWrite(w, noEscape(unsafe.Pointer(&p)))
}

func realWrite(w io.Writer, ptr unsafe.Pointer) {
	p := *(*[]byte)(ptr)
	if w == nil {
		earlyOutput.Write(p)
		return
	}
	w.Write(p)
}

//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
