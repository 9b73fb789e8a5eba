package kfmt

import (
	"bytes"
	"testing"
)

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	// mute vet warnings about malformed printf formatting strings
	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{
			func() { printfn("no args") },
			"no args",
		},
		{
			func() { printfn("%t %t", true, false) },
			"true false",
		},
		{
			func() { printfn("%s arg", "STRING") },
			"STRING arg",
		},
		{
			func() { printfn("%s arg", []byte("BYTE SLICE")) },
			"BYTE SLICE arg",
		},
		{
			func() { printfn("'%4s' padded", "ABC") },
			"' ABC' padded",
		},
		{
			func() { printfn("'%2s' longer than padding", "ABCDE") },
			"'ABCDE' longer than padding",
		},
		{
			func() { printfn("R3  = %08x", uint32(0xdead)) },
			"R3  = 0000dead",
		},
		{
			func() { printfn("Task (Id 0x%08x) got ", uint32(0x0a010001)) },
			"Task (Id 0x0a010001) got ",
		},
		{
			func() { printfn("exception %d", uint8(9)) },
			"exception 9",
		},
		{
			func() { printfn("%o", uint16(0777)) },
			"777",
		},
		{
			func() { printfn("'%10d'", uint64(123)) },
			"'       123'",
		},
		{
			func() { printfn("%x", uintptr(0xfff00100)) },
			"fff00100",
		},
		{
			func() { printfn("%d", int8(-10)) },
			"-10",
		},
		{
			func() { printfn("%x", int32(-0xbadf00d)) },
			"-badf00d",
		},
		{
			func() { printfn("'%10x'", int32(-0xbadf00d)) },
			"'-00badf00d'",
		},
		{
			func() { printfn("'%10d'", int64(-12345678)) },
			"' -12345678'",
		},
		{
			func() { printfn("'%5x'", int(-0xbadf00d)) },
			"'-badf00d'",
		},
		{
			func() { printfn("%d", 0) },
			"0",
		},
		{
			func() { printfn("%%%s%d%t", "foo", 123, true) },
			"%foo123true",
		},
		{
			func() { printfn("more args", "foo", "bar") },
			"more args%!(EXTRA)%!(EXTRA)",
		},
		{
			func() { printfn("missing args %s") },
			"missing args (MISSING)",
		},
		{
			func() { printfn("bad verb %Q") },
			"bad verb %!(NOVERB)",
		},
		{
			func() { printfn("trailing %") },
			"trailing %!(NOVERB)",
		},
		{
			func() { printfn("not bool %t", "foo") },
			"not bool %!(WRONGTYPE)",
		},
		{
			func() { printfn("not int %d", "foo") },
			"not int %!(WRONGTYPE)",
		},
		{
			func() { printfn("not string %s", 123) },
			"not string %!(WRONGTYPE)",
		},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn()

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected to get\n%q\ngot:\n%q", specIndex, spec.expOutput, got)
		}
	}
}

func TestPrintfToEarlyOutput(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	outputSink = nil
	earlyOutput = ringBuffer{}

	exp := "Oops, Exception 2 in initialization code\n"
	Printf("Oops, Exception %d in initialization code\n", 2)

	if GetOutputSink() != &earlyOutput {
		t.Fatal("expected GetOutputSink to return the early output buffer while no sink is attached")
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}

	if GetOutputSink() != &buf {
		t.Fatal("expected GetOutputSink to return the attached sink")
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer

	Fprintf(&buf, "\t R%d = %08x", 12, uint32(0x1234))

	if exp, got := "\t R12 = 00001234", buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}
