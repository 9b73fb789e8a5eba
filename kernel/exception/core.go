package exception

import (
	"encoding/binary"

	"ppcbsp/kernel"
)

// CoreRegistersSize is the size of the binary form of CoreRegisters.
const CoreRegistersSize = (32 + 8) * 4

var errCoreSize = &kernel.Error{Module: "exception", Message: "core register image has the wrong size"}

// CoreRegisters holds the registers of the last dispatched exception in the
// NetBSD/powerpc core file layout, so a core file generator can pick them up
// verbatim. MSR, DAR and Vec are extensions to that layout.
type CoreRegisters struct {
	GPR [32]uint32
	LR  uint32
	CR  uint32
	XER uint32
	CTR uint32
	PC  uint32
	MSR uint32
	DAR uint32
	Vec uint32
}

func (c *CoreRegisters) capture(f *Frame) {
	c.Vec = uint32(f.Vector)
	c.PC = f.SRR0
	c.MSR = f.SRR1
	c.GPR = f.GPR
	c.CR = f.CR
	c.CTR = f.CTR
	c.XER = f.XER
	c.LR = f.LR
	c.DAR = f.DAR
}

// MarshalBinary encodes the registers big-endian in layout order.
func (c *CoreRegisters) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(make([]byte, 0, CoreRegistersSize))
}

// AppendBinary appends the encoded registers to b.
func (c *CoreRegisters) AppendBinary(b []byte) ([]byte, error) {
	for _, v := range c.GPR {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	for _, v := range [...]uint32{c.LR, c.CR, c.XER, c.CTR, c.PC, c.MSR, c.DAR, c.Vec} {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b, nil
}

// UnmarshalBinary decodes an image produced by MarshalBinary.
func (c *CoreRegisters) UnmarshalBinary(b []byte) error {
	if len(b) != CoreRegistersSize {
		return errCoreSize
	}

	word := func(i int) uint32 { return binary.BigEndian.Uint32(b[i*4:]) }
	for i := range c.GPR {
		c.GPR[i] = word(i)
	}
	c.LR, c.CR, c.XER, c.CTR = word(32), word(33), word(34), word(35)
	c.PC, c.MSR, c.DAR, c.Vec = word(36), word(37), word(38), word(39)
	return nil
}
