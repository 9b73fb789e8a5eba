// Package exception implements the BSP default exception handler.
//
// Two kinds of per-task interception are supported:
//
//   - a low-level hook, invoked at exception priority before any task
//     context is restored; it is called before and after the exception is
//     reported and may take over the exception at either point.
//   - a high-level hook, entered in task context when an unrecoverable
//     exception returns; it is expected to transfer control to a recovery
//     point and never return.
//
// Without hooks, an unrecoverable exception suspends the faulting task. If
// no task context is available the system halts, or reboots when configured
// to.
package exception

import (
	"io"
	"sync/atomic"
	"unsafe"

	"ppcbsp/kernel/cpu"
	"ppcbsp/kernel/kfmt"
	"ppcbsp/kernel/task"
)

var (
	// haltFn and enableFPFn are mocked by tests and are automatically
	// inlined by the compiler.
	haltFn     = cpu.Halt
	enableFPFn = cpu.EnableFP
)

// Config holds the services and policy a Dispatcher works with. Only
// Executive is needed for task-level handling; every other field is
// optional.
type Config struct {
	// Executive classifies the context an exception happened in and
	// suspends faulting tasks. Without an executive every exception is
	// treated as happening during initialization.
	Executive task.Executive

	// Storage holds the per-task extensions. If nil, the build-time
	// default backend (task variables, or notepads with the bsp_notepad
	// build tag) is used if Executive supports it.
	Storage Storage

	// Console receives the exception report. If nil, output goes to the
	// kfmt output sink.
	Console io.Writer

	// StackTrace prints a stack trace for the frame after the register
	// dump.
	StackTrace func(w io.Writer, f *Frame)

	// ClearMachineCheck is the board specific routine that clears and
	// reports host bridge errors after a machine check.
	ClearMachineCheck func(f *Frame, quiet bool)

	// Reboot restarts the system.
	Reboot func()

	// RebootOnException selects rebooting instead of hanging when the
	// exception is fatal. It has no effect if Reboot is nil.
	RebootOnException bool

	// Halt replaces the CPU halt primitive. Hosted replays use it to stop
	// instead of parking the calling thread forever.
	Halt func()
}

// Dispatcher services one CPU's exceptions. Exceptions must be dispatched
// one at a time; a Dispatch call that starts while another one is running
// is treated as a fault inside the exception handler and is fatal.
type Dispatcher struct {
	cfg     Config
	storage Storage

	nest int32
	core CoreRegisters
}

// New returns a dispatcher using the supplied configuration.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{cfg: cfg, storage: cfg.Storage}
	if d.storage == nil && cfg.Executive != nil {
		d.storage = defaultStorage(cfg.Executive)
	}
	return d
}

// CoreRegisters returns the registers captured by the most recent Dispatch.
func (d *Dispatcher) CoreRegisters() CoreRegisters {
	return d.core
}

// Dispatch handles the exception described by f. It is called by the trap
// entry code with f filled in; when it returns, the trap exit code restores
// the CPU from f.
func (d *Dispatcher) Dispatch(f *Frame) Outcome {
	if atomic.AddInt32(&d.nest, 1) != 1 {
		d.printf("FATAL: Exception in exception handler\n")
		d.die()
		atomic.AddInt32(&d.nest, -1)
		return Outcome{Kind: Fatal}
	}
	defer atomic.AddInt32(&d.nest, -1)

	var (
		exec  = d.cfg.Executive
		id    task.ID
		ext   *Extension
		quiet bool
		msg   = "Oops, Exception %d in unknown task???\n"
	)

	// There is no task to hand the exception to if it happened inside an
	// interrupt handler or before the scheduler started.
	switch {
	case exec != nil && exec.InterruptInProgress():
		msg = "Oops, Exception %d in interrupt handler\n"
	case exec == nil || !exec.ThreadExecuting():
		msg = "Oops, Exception %d in initialization code\n"
	default:
		if self, err := exec.Self(); err == nil && self != 0 {
			id = self
			if ext = d.lookup(id); ext != nil {
				quiet = ext.Quiet
			}
			if !quiet {
				d.printf("Task (Id 0x%08x) got ", uint32(id))
			}
			msg = "exception %d\n"
		}
	}

	d.core.capture(f)

	if ext != nil && ext.LowLevelHook != nil && ext.LowLevelHook(f, ext, false) {
		return Outcome{Kind: Intercepted, Task: id}
	}

	if !quiet {
		d.printf(msg, uint32(f.Vector))
		f.DumpTo(d.out())
		if d.cfg.StackTrace != nil {
			d.cfg.StackTrace(d.out(), f)
		}
	}

	recoverable := d.classify(f, quiet)

	// second call; lets the hook intercept the default panic
	if ext != nil && ext.LowLevelHook != nil && ext.LowLevelHook(f, ext, true) {
		return Outcome{Kind: Intercepted, Task: id, Recoverable: recoverable}
	}

	if recoverable {
		return Outcome{Kind: Resumed, Task: id, Recoverable: true}
	}

	return d.unrecoverable(f, id, ext, quiet)
}

// classify reports whether execution may simply resume after the exception.
func (d *Dispatcher) classify(f *Frame, quiet bool) bool {
	switch f.Vector {
	case MachineCheck:
		if !quiet {
			d.printf("Machine check; reason:")
			if f.SRR1&(SRR1TEA|SRR1MCP) == 0 {
				d.printf("SRR1\n")
			} else {
				if f.SRR1&SRR1TEA != 0 {
					d.printf("TEA\n")
				}
				if f.SRR1&SRR1MCP != 0 {
					d.printf("MCP\n")
				}
			}
		}

		if d.cfg.ClearMachineCheck != nil {
			d.cfg.ClearMachineCheck(f, quiet)
		} else if !quiet {
			d.printf("\n")
		}
		return false
	case Decrementer:
		return true
	case SystemCall:
		// the system call trap leaves the recoverable flag in R3
		return f.GPR[3] != 0
	default:
		return false
	}
}

func (d *Dispatcher) unrecoverable(f *Frame, id task.ID, ext *Extension, quiet bool) Outcome {
	switch {
	case id != 0 && ext != nil && ext.HighLevelHook != nil:
		f.SRR0 = EntryAddr(ext.HighLevelHook)
		f.GPR[3] = uint32(uintptr(unsafe.Pointer(ext)))
		return Outcome{Kind: Redirected, Task: id, Entry: ext.HighLevelHook, Arg: ext}
	case id != 0:
		// Thread dispatching is not disabled here and the task may be
		// switched out with live FP state; keep the FPU on so the FP
		// unavailable exception cannot fire while it is saved.
		if uint64(f.SRR1)&cpu.MSRFP != 0 {
			enableFPFn()
		}
		if !quiet {
			d.printf("unrecoverable exception!!! task %08x suspended\n", uint32(id))
		}
		if err := d.cfg.Executive.Suspend(id); err != nil {
			d.printf("[%s] unable to suspend task %08x: %s\n", err.Module, uint32(id), err.Message)
			return Outcome{Kind: TaskSuspended, Task: id, Err: err}
		}
		return Outcome{Kind: TaskSuspended, Task: id}
	default:
		d.printf("FATAL: unrecoverable exception without a task context\n")
		d.die()
		return Outcome{Kind: Fatal}
	}
}

// die reboots or hangs according to the configured policy. A reboot
// primitive that returns falls back to hanging.
func (d *Dispatcher) die() {
	if d.cfg.RebootOnException && d.cfg.Reboot != nil {
		d.cfg.Reboot()
	}
	if d.cfg.Halt != nil {
		d.cfg.Halt()
		return
	}
	haltFn()
}

func (d *Dispatcher) out() io.Writer {
	if d.cfg.Console != nil {
		return d.cfg.Console
	}
	return kfmt.GetOutputSink()
}

func (d *Dispatcher) printf(format string, args ...interface{}) {
	kfmt.Fprintf(d.out(), format, args...)
}
