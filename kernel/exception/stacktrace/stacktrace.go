// Package stacktrace walks the PowerPC stack back chain of a faulting task.
//
// Every SysV/EABI stack frame starts with two words: a pointer to the
// caller's frame (the back chain) followed by the slot where callees save
// the link register. Starting from R1 in the exception frame, the walker
// follows the back chain and prints the saved return address of each frame.
package stacktrace

import (
	"encoding/binary"
	"io"

	"ppcbsp/kernel/exception"
	"ppcbsp/kernel/kfmt"
)

// DefaultMaxFrames bounds the walk when Walker.MaxFrames is 0. A longer
// chain almost always means the stack is corrupt.
const DefaultMaxFrames = 50

// framesPerLine is the number of return addresses printed on one line.
const framesPerLine = 5

// Memory gives read access to the stack of the faulting task. ReadWord
// returns false if addr cannot be read.
type Memory interface {
	ReadWord(addr uint32) (uint32, bool)
}

// Walker prints stack traces. Its Print method matches the StackTrace hook
// of exception.Config.
type Walker struct {
	Mem       Memory
	MaxFrames int
}

// Print writes the trace of the stack described by f to w. The output looks
// like:
//
//	Stack Trace:
//	  IP: 0x00012340, LR: 0x00012300
//	--^ 0x00001234--^ 0x00005678
func (wk *Walker) Print(w io.Writer, f *exception.Frame) {
	kfmt.Fprintf(w, "Stack Trace: \n  ")
	kfmt.Fprintf(w, "IP: 0x%08x, ", f.SRR0)
	kfmt.Fprintf(w, "LR: 0x%08x\n", f.LR)

	maxFrames := wk.MaxFrames
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}

	var (
		count int
		sp    = f.GPR[1]
	)
	for wk.Mem != nil && count < maxFrames {
		link, ok := wk.Mem.ReadWord(sp)
		if !ok || link == 0 {
			break
		}

		// the caller's frame holds the return address into the caller
		lr, ok := wk.Mem.ReadWord(link + 4)
		if !ok {
			break
		}

		kfmt.Fprintf(w, "--^ 0x%08x", lr)
		count++
		if count%framesPerLine == 0 {
			kfmt.Fprintf(w, "\n")
		}
		sp = link
	}

	if count >= maxFrames {
		kfmt.Fprintf(w, "Too many stack frames (stack possibly corrupted), giving up...\n")
	} else if count%framesPerLine != 0 {
		kfmt.Fprintf(w, "\n")
	}
}

// Image is a Memory backed by a big-endian copy of a stack region starting
// at Base.
type Image struct {
	Base uint32
	Data []byte
}

// ReadWord implements Memory. Unaligned and out of range reads fail.
func (m *Image) ReadWord(addr uint32) (uint32, bool) {
	if addr&3 != 0 || addr < m.Base {
		return 0, false
	}

	off := uint64(addr - m.Base)
	if off+4 > uint64(len(m.Data)) {
		return 0, false
	}
	return binary.BigEndian.Uint32(m.Data[off:]), true
}

// PutWord stores v at addr, growing the image if needed. It is used to build
// stack images for replayed exceptions.
func (m *Image) PutWord(addr, v uint32) bool {
	if addr&3 != 0 || addr < m.Base {
		return false
	}

	off := uint64(addr - m.Base)
	if need := off + 4; need > uint64(len(m.Data)) {
		m.Data = append(m.Data, make([]byte, need-uint64(len(m.Data)))...)
	}
	binary.BigEndian.PutUint32(m.Data[off:], v)
	return true
}
