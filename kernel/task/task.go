// Package task describes the RTOS executive services the exception handler
// depends on and provides Table, a hosted executive used by tests and by the
// replay tool.
package task

import "ppcbsp/kernel"

// ID identifies a task. Zero is never a valid task ID.
type ID uint32

// NotepadCount is the number of notepad words every task owns.
const NotepadCount = 16

// Executive is the subset of executive services consulted while an
// exception is dispatched. All methods must be callable at exception
// priority: they must not block and must not allocate.
type Executive interface {
	// InterruptInProgress reports whether an interrupt handler is running.
	InterruptInProgress() bool

	// ThreadExecuting reports whether the scheduler has a running task. It
	// is false during early initialization.
	ThreadExecuting() bool

	// Self returns the ID of the running task.
	Self() (ID, *kernel.Error)

	// Suspend stops the task until explicitly resumed.
	Suspend(id ID) *kernel.Error
}

// Notepads gives access to the per-task notepad words.
type Notepads interface {
	// GetNote is called at exception priority and may fail if the notepad
	// cannot be read without blocking.
	GetNote(id ID, slot int) (uintptr, *kernel.Error)

	SetNote(id ID, slot int, value uintptr) *kernel.Error

	// SwapNote stores value and returns the word it replaced. It may block
	// and never fails because the notepads are in use.
	SwapNote(id ID, slot int, value uintptr) (uintptr, *kernel.Error)
}

// Var identifies a task variable. Its address is the key; every task that
// added the variable sees its own value.
type Var struct {
	Name string
}

// Variables gives access to task variables.
type Variables interface {
	// GetVariable returns the task's value of v. It fails if the task never
	// added v. It is called at exception priority and may also fail if the
	// value cannot be read without blocking.
	GetVariable(id ID, v *Var) (interface{}, *kernel.Error)

	// AddVariable makes v task-local for the task, with the given initial
	// value. Adding an existing variable resets its value.
	AddVariable(id ID, v *Var, initial interface{}) *kernel.Error

	// SetVariable updates the task's value of v.
	SetVariable(id ID, v *Var, value interface{}) *kernel.Error

	// SwapVariable stores value as the task's value of v and returns the
	// value it replaced. The variable is added first if the task does not
	// have it yet, in which case the previous value is nil. It may block.
	SwapVariable(id ID, v *Var, value interface{}) (interface{}, *kernel.Error)
}
