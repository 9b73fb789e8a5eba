package exception

import (
	"io"

	"ppcbsp/kernel/kfmt"
)

// Machine check cause bits in SRR1.
const (
	SRR1TEA = uint32(1 << (31 - 13)) // transfer error acknowledge
	SRR1MCP = uint32(1 << (31 - 12)) // machine check pin
)

// Frame is the register snapshot built by the trap entry code. The trap exit
// code restores the CPU from it, so changes made to SRR0 and GPR[3] while the
// exception is dispatched take effect when the exception returns.
type Frame struct {
	Vector Vector

	// SRR0 holds the address of the next instruction (or the faulting
	// one, depending on the vector); SRR1 holds the saved MSR.
	SRR0 uint32
	SRR1 uint32

	GPR [32]uint32
	CR  uint32
	XER uint32
	CTR uint32
	LR  uint32
	DAR uint32
}

// DumpTo outputs the register contents to w.
func (f *Frame) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "\t Next PC or Address of fault = %x, ", f.SRR0)
	kfmt.Fprintf(w, "Saved MSR = %x\n", f.SRR1)

	for i, v := range f.GPR {
		if i%4 == 0 {
			kfmt.Fprintf(w, "\t")
		}

		if i < 10 {
			kfmt.Fprintf(w, " R%d  = %08x", i, v)
		} else {
			kfmt.Fprintf(w, " R%d = %08x", i, v)
		}

		if i%4 == 3 {
			kfmt.Fprintf(w, "\n")
		}
	}

	kfmt.Fprintf(w, "\t CR  = %08x\n", f.CR)
	kfmt.Fprintf(w, "\t CTR = %08x\n", f.CTR)
	kfmt.Fprintf(w, "\t XER = %08x\n", f.XER)
	kfmt.Fprintf(w, "\t LR  = %08x\n", f.LR)
	kfmt.Fprintf(w, "\t DAR = %08x\n", f.DAR)
}
