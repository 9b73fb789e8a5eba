package task

import (
	"sync/atomic"

	"ppcbsp/kernel"
	"ppcbsp/kernel/sync"
)

// firstID mirrors the ID the executive hands to the first classic API task.
const firstID = ID(0x0a010001)

var (
	errNoTask      = &kernel.Error{Module: "task", Message: "invalid task id"}
	errNoRunning   = &kernel.Error{Module: "task", Message: "no task is executing"}
	errInvalidSlot = &kernel.Error{Module: "task", Message: "invalid notepad slot"}
	errNoVariable  = &kernel.Error{Module: "task", Message: "task variable not found"}
	errTableBusy   = &kernel.Error{Module: "task", Message: "task table locked"}
	errSuspended   = &kernel.Error{Module: "task", Message: "task already suspended"}
)

type control struct {
	name      string
	suspended bool
	notes     [NotepadCount]uintptr
	vars      map[*Var]interface{}
}

// Table is an in-memory executive. It implements Executive, Notepads and
// Variables.
//
// Mutating methods take the table lock. Methods that may be called while an
// exception is dispatched only try the lock and fail with a "locked" error
// if it is held, so a fault inside a table update cannot deadlock. The
// running task is read without the lock.
type Table struct {
	lock sync.Spinlock

	tasks   map[ID]*control
	order   []ID
	irqNest int

	// running is updated with the lock held and read atomically.
	running uint32
}

// NewTable returns an empty table in the "initialization" state: no task is
// running and no interrupt is in progress.
func NewTable() *Table {
	return &Table{tasks: make(map[ID]*control)}
}

// Create adds a task and returns its ID.
func (t *Table) Create(name string) ID {
	t.lock.Acquire()
	defer t.lock.Release()

	id := firstID + ID(len(t.order))
	t.tasks[id] = &control{name: name, vars: make(map[*Var]interface{})}
	t.order = append(t.order, id)
	return id
}

// Tasks returns the IDs of all tasks in creation order.
func (t *Table) Tasks() []ID {
	t.lock.Acquire()
	defer t.lock.Release()

	return append([]ID(nil), t.order...)
}

// Name returns the name the task was created with.
func (t *Table) Name(id ID) string {
	t.lock.Acquire()
	defer t.lock.Release()

	if tc := t.tasks[id]; tc != nil {
		return tc.name
	}
	return ""
}

// Run makes id the executing task. Passing 0 returns the table to the
// initialization state.
func (t *Table) Run(id ID) *kernel.Error {
	t.lock.Acquire()
	defer t.lock.Release()

	if id != 0 && t.tasks[id] == nil {
		return errNoTask
	}
	atomic.StoreUint32(&t.running, uint32(id))
	return nil
}

// EnterInterrupt marks the start of an interrupt handler.
func (t *Table) EnterInterrupt() {
	t.lock.Acquire()
	t.irqNest++
	t.lock.Release()
}

// ExitInterrupt marks the end of an interrupt handler.
func (t *Table) ExitInterrupt() {
	t.lock.Acquire()
	if t.irqNest > 0 {
		t.irqNest--
	}
	t.lock.Release()
}

// IsSuspended reports whether Suspend was called for the task.
func (t *Table) IsSuspended(id ID) bool {
	t.lock.Acquire()
	defer t.lock.Release()

	tc := t.tasks[id]
	return tc != nil && tc.suspended
}

// Resume clears the suspended state of a task.
func (t *Table) Resume(id ID) *kernel.Error {
	t.lock.Acquire()
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return errNoTask
	}
	tc.suspended = false
	return nil
}

// InterruptInProgress implements Executive.
func (t *Table) InterruptInProgress() bool {
	if !t.lock.TryToAcquire() {
		// a fault while the table is being updated happened in task
		// context, not in an interrupt handler
		return false
	}
	defer t.lock.Release()

	return t.irqNest > 0
}

// ThreadExecuting implements Executive.
func (t *Table) ThreadExecuting() bool {
	return atomic.LoadUint32(&t.running) != 0
}

// Self implements Executive.
func (t *Table) Self() (ID, *kernel.Error) {
	id := ID(atomic.LoadUint32(&t.running))
	if id == 0 {
		return 0, errNoRunning
	}
	return id, nil
}

// Suspend implements Executive. Suspending the running task leaves the table
// with no executing task until Run is called again.
func (t *Table) Suspend(id ID) *kernel.Error {
	if !t.lock.TryToAcquire() {
		return errTableBusy
	}
	defer t.lock.Release()

	tc := t.tasks[id]
	switch {
	case tc == nil:
		return errNoTask
	case tc.suspended:
		return errSuspended
	}

	tc.suspended = true
	atomic.CompareAndSwapUint32(&t.running, uint32(id), 0)
	return nil
}

// GetNote implements Notepads.
func (t *Table) GetNote(id ID, slot int) (uintptr, *kernel.Error) {
	if slot < 0 || slot >= NotepadCount {
		return 0, errInvalidSlot
	}
	if !t.lock.TryToAcquire() {
		return 0, errTableBusy
	}
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return 0, errNoTask
	}
	return tc.notes[slot], nil
}

// SetNote implements Notepads.
func (t *Table) SetNote(id ID, slot int, value uintptr) *kernel.Error {
	if slot < 0 || slot >= NotepadCount {
		return errInvalidSlot
	}
	t.lock.Acquire()
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return errNoTask
	}
	tc.notes[slot] = value
	return nil
}

// SwapNote implements Notepads.
func (t *Table) SwapNote(id ID, slot int, value uintptr) (uintptr, *kernel.Error) {
	if slot < 0 || slot >= NotepadCount {
		return 0, errInvalidSlot
	}
	t.lock.Acquire()
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return 0, errNoTask
	}
	old := tc.notes[slot]
	tc.notes[slot] = value
	return old, nil
}

// GetVariable implements Variables.
func (t *Table) GetVariable(id ID, v *Var) (interface{}, *kernel.Error) {
	if !t.lock.TryToAcquire() {
		return nil, errTableBusy
	}
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return nil, errNoTask
	}
	value, ok := tc.vars[v]
	if !ok {
		return nil, errNoVariable
	}
	return value, nil
}

// AddVariable implements Variables.
func (t *Table) AddVariable(id ID, v *Var, initial interface{}) *kernel.Error {
	t.lock.Acquire()
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return errNoTask
	}
	tc.vars[v] = initial
	return nil
}

// SetVariable implements Variables.
func (t *Table) SetVariable(id ID, v *Var, value interface{}) *kernel.Error {
	t.lock.Acquire()
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return errNoTask
	}
	if _, ok := tc.vars[v]; !ok {
		return errNoVariable
	}
	tc.vars[v] = value
	return nil
}

// SwapVariable implements Variables.
func (t *Table) SwapVariable(id ID, v *Var, value interface{}) (interface{}, *kernel.Error) {
	t.lock.Acquire()
	defer t.lock.Release()

	tc := t.tasks[id]
	if tc == nil {
		return nil, errNoTask
	}
	old := tc.vars[v]
	tc.vars[v] = value
	return old, nil
}
