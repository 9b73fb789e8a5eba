// Package luahook implements exception low-level hooks as Lua scripts.
//
// A script defines a global function
//
//	function lowlevel(frame, after, quiet)
//	  ...
//	  return true -- take over the exception
//	end
//
// frame is a table with the fields vector, srr0, srr1, lr, cr, xer, ctr,
// dar and gpr (indexed 0 to 31). Changes the function makes to the table are
// written back to the exception frame when it returns.
package luahook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"ppcbsp/kernel/exception"
)

// EntryPoint is the global function a hook script must define.
const EntryPoint = "lowlevel"

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = time.Second

// ErrClosed is reported by hooks invoked after Close.
var ErrClosed = errors.New("lua hook is closed")

// Option configures a Hook.
type Option func(*Hook)

// WithTimeout sets the per invocation timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(h *Hook) {
		h.timeout = d
	}
}

// WithOutput redirects the script's print calls to w.
func WithOutput(w io.Writer) Option {
	return func(h *Hook) {
		h.out = w
	}
}

// Hook runs a Lua low-level hook. A Hook is not safe for concurrent use;
// each dispatcher needs its own.
type Hook struct {
	L  *lua.LState
	fn *lua.LFunction

	timeout time.Duration
	out     io.Writer

	// err holds the error of the last failed invocation.
	err error
}

// Load compiles the script in path.
func Load(path string, opts ...Option) (*Hook, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(string(src), opts...)
}

// New compiles a hook script.
func New(src string, opts ...Option) (*Hook, error) {
	h := &Hook{timeout: DefaultTimeout, out: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}

	h.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(h.L)
	h.L.SetGlobal("print", h.L.NewFunction(h.print))

	if err := h.L.DoString(src); err != nil {
		h.L.Close()
		return nil, fmt.Errorf("lua hook: %w", err)
	}

	fn, ok := h.L.GetGlobal(EntryPoint).(*lua.LFunction)
	if !ok {
		h.L.Close()
		return nil, fmt.Errorf("lua hook: script does not define function %q", EntryPoint)
	}
	h.fn = fn

	return h, nil
}

// openSafeLibraries opens the libraries a hook may use. io, os, package and
// debug stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// Close releases the Lua state.
func (h *Hook) Close() {
	if h.L != nil {
		h.L.Close()
		h.L = nil
	}
}

// Err returns the error of the last failed invocation, if any.
func (h *Hook) Err() error {
	return h.err
}

// LowLevel implements exception.LowLevelHook. A failing script does not take
// over the exception and leaves the frame untouched.
func (h *Hook) LowLevel(f *exception.Frame, ext *exception.Extension, after bool) bool {
	if h.L == nil {
		h.err = ErrClosed
		return false
	}

	if h.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		h.L.SetContext(ctx)
		defer func() {
			h.L.RemoveContext()
			cancel()
		}()
	}

	quiet := ext != nil && ext.Quiet
	tbl := frameToTable(h.L, f)

	err := h.L.CallByParam(lua.P{
		Fn:      h.fn,
		NRet:    1,
		Protect: true,
	}, tbl, lua.LBool(after), lua.LBool(quiet))
	if err != nil {
		h.err = err
		return false
	}

	ret := h.L.Get(-1)
	h.L.Pop(1)

	var updated exception.Frame
	if err := tableToFrame(tbl, f, &updated); err != nil {
		h.err = err
		return false
	}
	*f = updated
	h.err = nil

	return lua.LVAsBool(ret)
}

func (h *Hook) print(L *lua.LState) int {
	var sb strings.Builder
	for i := 1; i <= L.GetTop(); i++ {
		if i > 1 {
			sb.WriteByte('\t')
		}
		sb.WriteString(L.ToStringMeta(L.Get(i)).String())
	}
	sb.WriteByte('\n')
	io.WriteString(h.out, sb.String())
	return 0
}

type register struct {
	name string
	get  func(f *exception.Frame) *uint32
}

// registers lists the frame fields visible to scripts, besides the GPRs.
var registers = []register{
	{"srr0", func(f *exception.Frame) *uint32 { return &f.SRR0 }},
	{"srr1", func(f *exception.Frame) *uint32 { return &f.SRR1 }},
	{"lr", func(f *exception.Frame) *uint32 { return &f.LR }},
	{"cr", func(f *exception.Frame) *uint32 { return &f.CR }},
	{"xer", func(f *exception.Frame) *uint32 { return &f.XER }},
	{"ctr", func(f *exception.Frame) *uint32 { return &f.CTR }},
	{"dar", func(f *exception.Frame) *uint32 { return &f.DAR }},
}

func frameToTable(L *lua.LState, f *exception.Frame) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("vector", lua.LNumber(f.Vector))
	tbl.RawSetString("name", lua.LString(f.Vector.String()))
	for _, reg := range registers {
		tbl.RawSetString(reg.name, lua.LNumber(*reg.get(f)))
	}

	gpr := L.NewTable()
	for i, v := range f.GPR {
		gpr.RawSet(lua.LNumber(i), lua.LNumber(v))
	}
	tbl.RawSetString("gpr", gpr)

	return tbl
}

// tableToFrame reads the registers back from tbl into dst, starting from a
// copy of f. The vector is read only.
func tableToFrame(tbl *lua.LTable, f, dst *exception.Frame) error {
	*dst = *f

	for _, reg := range registers {
		v, err := toWord(tbl.RawGetString(reg.name))
		if err != nil {
			return fmt.Errorf("frame.%s: %w", reg.name, err)
		}
		*reg.get(dst) = v
	}

	gpr, ok := tbl.RawGetString("gpr").(*lua.LTable)
	if !ok {
		return fmt.Errorf("frame.gpr: not a table")
	}
	for i := range dst.GPR {
		v, err := toWord(gpr.RawGet(lua.LNumber(i)))
		if err != nil {
			return fmt.Errorf("frame.gpr[%d]: %w", i, err)
		}
		dst.GPR[i] = v
	}

	return nil
}

func toWord(lv lua.LValue) (uint32, error) {
	n, ok := lv.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("expected a number; got %s", lv.Type())
	}
	if n < 0 || n > 0xffffffff || lua.LNumber(uint32(n)) != n {
		return 0, fmt.Errorf("value %s does not fit a 32-bit register", n.String())
	}
	return uint32(n), nil
}
