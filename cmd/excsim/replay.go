package main

import (
	"fmt"
	"io"

	"ppcbsp/internal/luahook"
	"ppcbsp/internal/scenario"
	"ppcbsp/kernel/exception"
	"ppcbsp/kernel/exception/stacktrace"
	"ppcbsp/kernel/kfmt"
	"ppcbsp/kernel/task"
)

// result is the outcome of replaying one scenario exception.
type result struct {
	index   int
	vector  exception.Vector
	task    string
	outcome exception.Outcome
	core    exception.CoreRegisters
}

// replayer drives a dispatcher through the exceptions of a scenario using a
// simulated executive.
type replayer struct {
	sc      *scenario.Scenario
	tbl     *task.Table
	ids     map[string]task.ID
	names   map[task.ID]string
	d       *exception.Dispatcher
	stack   *stacktrace.Image
	console io.Writer

	reboots int
	halted  bool
}

func newReplayer(sc *scenario.Scenario, hook *luahook.Hook, console io.Writer, rebootOnException bool) (*replayer, error) {
	r := &replayer{
		sc:      sc,
		tbl:     task.NewTable(),
		ids:     make(map[string]task.ID),
		names:   make(map[task.ID]string),
		stack:   &stacktrace.Image{},
		console: console,
	}

	for _, t := range sc.Tasks {
		id := r.tbl.Create(t.Name)
		r.ids[t.Name] = id
		r.names[id] = t.Name
	}

	var storage exception.Storage
	switch sc.Storage {
	case scenario.StorageNotepad:
		storage = exception.NewNotepadStorage(r.tbl, sc.NotepadSlot)
	case scenario.StorageTaskVar:
		storage = exception.NewTaskVarStorage(r.tbl)
	}

	walker := &stacktrace.Walker{Mem: r.stack}
	r.d = exception.New(exception.Config{
		Executive:         r.tbl,
		Storage:           storage,
		Console:           console,
		StackTrace:        walker.Print,
		Reboot:            func() { r.reboots++ },
		RebootOnException: rebootOnException || sc.RebootOnException,
		Halt:              func() { r.halted = true },
	})

	if err := r.installExtensions(hook); err != nil {
		return nil, err
	}
	return r, nil
}

// installExtensions runs each task once so it can install its extension,
// then returns the executive to the initialization state.
func (r *replayer) installExtensions(hook *luahook.Hook) error {
	defer r.tbl.Run(0)

	for _, t := range r.sc.Tasks {
		if t.Extension == nil {
			continue
		}

		ext := &exception.Extension{Quiet: t.Extension.Quiet, Data: t.Name}
		switch t.Extension.LowLevel {
		case scenario.LowLevelBefore:
			ext.LowLevelHook = func(_ *exception.Frame, _ *exception.Extension, after bool) bool { return !after }
		case scenario.LowLevelAfter:
			ext.LowLevelHook = func(_ *exception.Frame, _ *exception.Extension, after bool) bool { return after }
		case scenario.LowLevelScript:
			if hook == nil {
				return fmt.Errorf("task %s uses a Lua low-level hook but no script was given", t.Name)
			}
			ext.LowLevelHook = hook.LowLevel
		}
		if t.Extension.HighLevel {
			ext.HighLevelHook = r.enterRecovery
		}

		if err := r.tbl.Run(r.ids[t.Name]); err != nil {
			return fmt.Errorf("task %s: %s", t.Name, err.Message)
		}
		r.d.Install(ext)
	}

	return nil
}

// enterRecovery is the high-level hook of replayed tasks. A real hook would
// longjmp to a recovery point; the replay only records that it ran.
func (r *replayer) enterRecovery(ext *exception.Extension) {
	name, _ := ext.Data.(string)
	kfmt.Fprintf(r.console, "task %s: recovery hook entered\n", name)
}

// replay dispatches the i-th scenario exception.
func (r *replayer) replay(i int) (result, error) {
	e := r.sc.Exceptions[i]

	var id task.ID
	if e.Task != "" {
		id = r.ids[e.Task]
	}

	switch e.Context {
	case scenario.ContextTask:
		if r.tbl.IsSuspended(id) {
			return result{}, fmt.Errorf("exception %d: task %s is suspended", i, e.Task)
		}
		r.tbl.Run(id)
	case scenario.ContextInterrupt:
		r.tbl.Run(id)
		r.tbl.EnterInterrupt()
		defer r.tbl.ExitInterrupt()
	case scenario.ContextInit:
		r.tbl.Run(0)
	}

	r.stack.Base, r.stack.Data = 0, r.stack.Data[:0]
	if len(e.Stack) > 0 {
		r.stack.Base = e.Stack[0].Addr
		for _, w := range e.Stack {
			if w.Addr < r.stack.Base {
				r.stack.Base = w.Addr
			}
		}
		r.stack.Base &^= 3
		for _, w := range e.Stack {
			if !r.stack.PutWord(w.Addr, w.Value) {
				return result{}, fmt.Errorf("exception %d: unaligned stack word at 0x%x", i, w.Addr)
			}
		}
	}

	f := e.Frame
	out := r.d.Dispatch(&f)
	if out.Kind == exception.Redirected {
		// returning from the exception enters the high-level hook
		out.Resume()
	}

	return result{
		index:   i,
		vector:  e.Frame.Vector,
		task:    r.names[out.Task],
		outcome: out,
		core:    r.d.CoreRegisters(),
	}, nil
}
