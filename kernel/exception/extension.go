package exception

import "reflect"

// LowLevelHook is called at exception priority, before any task context is
// restored. It runs twice per exception: once before the exception is
// reported (after == false) and once after the exception has been classified
// (after == true).
//
// Returning true from the first call skips reporting, classification and the
// second call. Returning true from the second call skips the default panic.
// In both cases the hook owns the exception from then on.
type LowLevelHook func(f *Frame, ext *Extension, after bool) bool

// HighLevelHook runs in the faulting task's context after an unrecoverable
// exception returns. It must not return; it is expected to transfer control
// to a recovery point (for example by unwinding the task to a known state).
type HighLevelHook func(ext *Extension)

// Extension holds the per-task exception handling settings. It is owned by
// the application; Install only records a reference to it.
type Extension struct {
	LowLevelHook LowLevelHook

	// Quiet suppresses all console output for exceptions in this task. It
	// does not change how exceptions are classified or handled.
	Quiet bool

	HighLevelHook HighLevelHook

	// Data is free for the application, typically the state the high-level
	// hook needs to recover.
	Data interface{}
}

// EntryAddr returns the code address the exception return jumps to when h is
// installed as the resume target.
func EntryAddr(h HighLevelHook) uint32 {
	if h == nil {
		return 0
	}
	return uint32(reflect.ValueOf(h).Pointer())
}
