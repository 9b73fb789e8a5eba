package luahook

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ppcbsp/kernel/exception"
	"ppcbsp/kernel/task"
)

func testFrame(vec exception.Vector) *exception.Frame {
	f := &exception.Frame{
		Vector: vec,
		SRR0:   0x12340,
		SRR1:   0xb032,
		LR:     0x12300,
		DAR:    0xdeadbeef,
	}
	for i := range f.GPR {
		f.GPR[i] = uint32(i)
	}
	return f
}

func TestNewErrors(t *testing.T) {
	specs := []struct {
		src    string
		expErr string
	}{
		{"function lowlevel(", "lua hook:"},
		{"x = 1", `does not define function "lowlevel"`},
		{"lowlevel = 42", `does not define function "lowlevel"`},
	}

	for specIndex, spec := range specs {
		if _, err := New(spec.src); err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestLowLevelIntercept(t *testing.T) {
	h, err := New(`
function lowlevel(frame, after, quiet)
  return after and frame.name == "system call" and not quiet
end`)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	specs := []struct {
		vec   exception.Vector
		after bool
		quiet bool
		exp   bool
	}{
		{exception.SystemCall, false, false, false},
		{exception.SystemCall, true, false, true},
		{exception.SystemCall, true, true, false},
		{exception.Program, true, false, false},
	}

	for specIndex, spec := range specs {
		got := h.LowLevel(testFrame(spec.vec), &exception.Extension{Quiet: spec.quiet}, spec.after)
		if got != spec.exp {
			t.Errorf("[spec %d] expected %t; got %t", specIndex, spec.exp, got)
		}
		if h.Err() != nil {
			t.Errorf("[spec %d] unexpected error %v", specIndex, h.Err())
		}
	}
}

func TestLowLevelWritesFrame(t *testing.T) {
	h, err := New(`
function lowlevel(frame, after)
  frame.srr0 = frame.srr0 + 4
  frame.gpr[0] = 0x80
  frame.gpr[3] = 1
  frame.vector = 99
  return false
end`)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testFrame(exception.SystemCall)
	h.LowLevel(f, nil, false)

	if f.SRR0 != 0x12344 || f.GPR[0] != 0x80 || f.GPR[3] != 1 || f.GPR[4] != 4 {
		t.Fatalf("expected the script's register updates to be applied; got SRR0=0x%x GPR=%v", f.SRR0, f.GPR)
	}
	if f.Vector != exception.SystemCall {
		t.Fatal("expected the vector to be read only")
	}
	if f.LR != 0x12300 || f.DAR != 0xdeadbeef {
		t.Fatal("expected untouched registers to keep their values")
	}
}

func TestLowLevelFailures(t *testing.T) {
	specs := []struct {
		src    string
		expErr string
	}{
		{`function lowlevel(frame) error("boom") end`, "boom"},
		{`function lowlevel(frame) frame.lr = "x"; return true end`, "frame.lr: expected a number"},
		{`function lowlevel(frame) frame.srr0 = -1; return true end`, "frame.srr0: value -1 does not fit"},
		{`function lowlevel(frame) frame.gpr[31] = 0.5; return true end`, "frame.gpr[31]: value 0.5 does not fit"},
		{`function lowlevel(frame) frame.gpr = 1; return true end`, "frame.gpr: not a table"},
	}

	for specIndex, spec := range specs {
		h, err := New(spec.src)
		if err != nil {
			t.Fatal(err)
		}

		f := testFrame(exception.Program)
		orig := *f

		if h.LowLevel(f, nil, true) {
			t.Errorf("[spec %d] expected a failing script not to intercept", specIndex)
		}
		if err := h.Err(); err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErr, err)
		}
		if *f != orig {
			t.Errorf("[spec %d] expected the frame to be left untouched", specIndex)
		}

		h.Close()
	}
}

func TestLowLevelTimeout(t *testing.T) {
	h, err := New(`function lowlevel() while true do end end`, WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if h.LowLevel(testFrame(exception.Program), nil, false) {
		t.Fatal("expected a timed out script not to intercept")
	}
	if h.Err() == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestLowLevelAfterClose(t *testing.T) {
	h, err := New(`function lowlevel() return true end`)
	if err != nil {
		t.Fatal(err)
	}
	h.Close()
	h.Close()

	if h.LowLevel(testFrame(exception.Program), nil, false) || h.Err() != ErrClosed {
		t.Fatalf("expected ErrClosed; got %v", h.Err())
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	h, err := New(`
function lowlevel(frame, after)
  print("vector", frame.vector, after)
end`, WithOutput(&buf))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	h.LowLevel(testFrame(exception.Alignment), nil, true)

	if exp, got := "vector\t6\ttrue\n", buf.String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hook.lua")
	if err := os.WriteFile(path, []byte(`function lowlevel() return true end`), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if !h.LowLevel(testFrame(exception.Program), nil, false) {
		t.Fatal("expected the loaded script to intercept")
	}

	if _, err := Load(path + ".missing"); err == nil {
		t.Fatal("expected an error for a missing script")
	}
}

func TestHookInDispatcher(t *testing.T) {
	// skip the faulting instruction and let the task continue
	h, err := New(`
function lowlevel(frame, after)
  if after then
    frame.srr0 = frame.srr0 + 4
    return true
  end
  return false
end`)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	var (
		buf bytes.Buffer
		tbl = task.NewTable()
		id  = tbl.Create("TSK1")
		d   = exception.New(exception.Config{Executive: tbl, Console: &buf})
	)
	tbl.Run(id)
	d.Install(&exception.Extension{Quiet: true, LowLevelHook: h.LowLevel})

	f := testFrame(exception.Program)
	out := d.Dispatch(f)

	if out.Kind != exception.Intercepted {
		t.Fatalf("expected the script to intercept; got %v", out.Kind)
	}
	if f.SRR0 != 0x12344 {
		t.Fatalf("expected SRR0 to be advanced; got 0x%x", f.SRR0)
	}
	if tbl.IsSuspended(id) {
		t.Fatal("expected the task to keep running")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output; got %q", buf.String())
	}
}
