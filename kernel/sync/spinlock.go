// Package sync provides the spinlock used to guard BSP tables that may be
// read from exception context.
package sync

import (
	"runtime"
	"sync/atomic"
)

var (
	// yieldFn is invoked between acquisition attempts once spinBeforeYield
	// attempts have failed.
	yieldFn = runtime.Gosched
)

const spinBeforeYield = 64

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
//
// Code running at exception priority must never call Acquire: the holder may
// be the very task that faulted. Use TryToAcquire and treat failure as "data
// not available".
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempt := 1; !l.TryToAcquire(); attempt++ {
		if attempt%spinBeforeYield == 0 {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
