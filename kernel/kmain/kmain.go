// Package kmain brings up the BSP exception handler at boot.
package kmain

import (
	"io"

	"ppcbsp/kernel"
	"ppcbsp/kernel/exception"
	"ppcbsp/kernel/exception/stacktrace"
	"ppcbsp/kernel/kfmt"
	"ppcbsp/kernel/task"
)

var (
	errNoConsole   = &kernel.Error{Module: "kmain", Message: "board has no console"}
	errNoExecutive = &kernel.Error{Module: "kmain", Message: "no executive to attach the exception handler to"}
	errNotepadSlot = &kernel.Error{Module: "kmain", Message: "invalid notepad slot for exception extensions"}

	// panicFn is mocked by tests.
	panicFn = kernel.Panic
)

// Board supplies the board specific services used by the exception handler.
type Board interface {
	// Console returns the polled console used for diagnostics.
	Console() io.Writer

	// Reboot resets the board. It does not return.
	Reboot()
}

// MachineCheckClearer is implemented by boards whose host bridge latches
// bus errors that must be cleared after a machine check.
type MachineCheckClearer interface {
	ClearMachineCheck(f *exception.Frame, quiet bool)
}

// Halter is implemented by boards that stop differently than by parking the
// CPU, for example by powering off or by letting a watchdog expire.
type Halter interface {
	Halt()
}

// Config holds the boot time settings of the exception handler.
type Config struct {
	Board     Board
	Executive task.Executive

	// Stack gives the stack walker access to memory. Without it no stack
	// trace is printed.
	Stack stacktrace.Memory

	// RebootOnException selects rebooting instead of hanging when an
	// exception cannot be attributed to a task.
	RebootOnException bool

	// NotepadSlot overrides exception.DefaultNotepadSlot for the notepad
	// storage backend. Nil keeps the default.
	NotepadSlot *int
}

// Kmain attaches the board console to kfmt, replaying everything printed so
// far, and installs the default exception handler. It must run before
// interrupts are enabled. A configuration that leaves the system without an
// exception handler is fatal.
func Kmain(cfg Config) {
	if cfg.Board == nil || cfg.Board.Console() == nil {
		panicFn(errNoConsole)
		return
	}
	kfmt.SetOutputSink(cfg.Board.Console())

	if cfg.Executive == nil {
		panicFn(errNoExecutive)
		return
	}

	if slot := cfg.NotepadSlot; slot != nil {
		if *slot < 0 || *slot >= task.NotepadCount {
			panicFn(errNotepadSlot)
			return
		}
		exception.DefaultNotepadSlot = *slot
	}

	excCfg := exception.Config{
		Executive:         cfg.Executive,
		Reboot:            cfg.Board.Reboot,
		RebootOnException: cfg.RebootOnException,
	}
	if cfg.Stack != nil {
		excCfg.StackTrace = (&stacktrace.Walker{Mem: cfg.Stack}).Print
	}
	if mc, ok := cfg.Board.(MachineCheckClearer); ok {
		excCfg.ClearMachineCheck = mc.ClearMachineCheck
	}
	if h, ok := cfg.Board.(Halter); ok {
		excCfg.Halt = h.Halt
	}
	exception.Init(excCfg)

	kfmt.Printf("exception handler installed (reboot on fatal exception: %t)\n", cfg.RebootOnException)
}
