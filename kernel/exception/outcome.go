package exception

import (
	"ppcbsp/kernel"
	"ppcbsp/kernel/task"
)

// OutcomeKind tells how a dispatched exception was resolved.
type OutcomeKind uint8

const (
	// Resumed means the exception was recoverable; execution continues
	// where it was interrupted.
	Resumed OutcomeKind = iota

	// Intercepted means a low-level hook took over the exception.
	Intercepted

	// Redirected means the frame was rewritten so that the exception
	// returns into the task's high-level hook.
	Redirected

	// TaskSuspended means the faulting task was handed to the executive
	// for suspension. Outcome.Err is set if the executive refused.
	TaskSuspended

	// Fatal means the system was halted or rebooted. Dispatch only returns
	// a Fatal outcome if the halt/reboot primitives return, which real
	// hardware never does.
	Fatal
)

var outcomeNames = [...]string{
	Resumed:       "resumed",
	Intercepted:   "intercepted",
	Redirected:    "redirected",
	TaskSuspended: "task suspended",
	Fatal:         "fatal",
}

func (k OutcomeKind) String() string {
	if int(k) < len(outcomeNames) {
		return outcomeNames[k]
	}
	return "unknown"
}

// Outcome describes how Dispatch resolved an exception.
type Outcome struct {
	Kind OutcomeKind

	// Task is the faulting task, or 0 if the exception did not happen in
	// an identifiable task.
	Task task.ID

	// Recoverable reports the classification of the exception. It is
	// always false if the first low-level hook call intercepted it.
	Recoverable bool

	// Entry and Arg are the resume target of a Redirected outcome.
	Entry HighLevelHook
	Arg   *Extension

	// Err is the executive's error if a TaskSuspended outcome failed to
	// suspend the task.
	Err *kernel.Error
}

// Resume runs the high-level hook of a Redirected outcome on the calling
// goroutine. Hosted trap trampolines use it in place of returning through
// the rewritten frame. It is a no-op for other outcomes.
func (o Outcome) Resume() {
	if o.Kind == Redirected && o.Entry != nil {
		o.Entry(o.Arg)
	}
}
