// Package coredump renders the staged core registers of a dispatcher as
// JSON for core file harvesting tools.
package coredump

import (
	"encoding/hex"
	"fmt"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"ppcbsp/kernel/exception"
)

// Options control the rendered document.
type Options struct {
	// CPU is recorded in the document so dumps of several CPUs can be told
	// apart.
	CPU int

	// Compact disables pretty printing.
	Compact bool

	// Color highlights the document with ANSI escapes for terminal output.
	Color bool
}

// Encode renders regs. Register values are encoded as 0x prefixed, zero
// padded hex strings; "image" holds the big-endian binary layout expected
// by the harvest tool.
func Encode(regs *exception.CoreRegisters, opts Options) ([]byte, error) {
	image, err := regs.MarshalBinary()
	if err != nil {
		return nil, err
	}

	doc := []byte(`{}`)
	set := func(path string, value interface{}) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, value)
		}
	}

	set("cpu", opts.CPU)
	set("vector", regs.Vec)
	set("vectorName", exception.Vector(regs.Vec).String())
	set("pc", word(regs.PC))
	set("msr", word(regs.MSR))
	set("lr", word(regs.LR))
	set("cr", word(regs.CR))
	set("xer", word(regs.XER))
	set("ctr", word(regs.CTR))
	set("dar", word(regs.DAR))

	gpr := make([]string, len(regs.GPR))
	for i, v := range regs.GPR {
		gpr[i] = word(v)
	}
	set("gpr", gpr)
	set("image", hex.EncodeToString(image))

	if err != nil {
		return nil, err
	}

	if opts.Compact {
		doc = pretty.Ugly(doc)
	} else {
		doc = pretty.Pretty(doc)
	}
	if opts.Color {
		doc = pretty.Color(doc, pretty.TerminalStyle)
	}
	return doc, nil
}

func word(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
