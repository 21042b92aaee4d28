// Package sync provides the synchronization primitives used by the bring-up
// code: a spinlock and a set-once cell for process-wide state.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked after attemptsBeforeYielding failed acquisition
	// attempts. It stays nil until a scheduler exists; tests point it to
	// runtime.Gosched.
	yieldFn func()
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	acquireSpinlock(&l.state, 64)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

func acquireSpinlock(state *uint32, attemptsBeforeYielding uint32) {
	for {
		for attempt := uint32(0); attempt < attemptsBeforeYielding; attempt++ {
			// test before test-and-set to keep the cache line shared
			// while the lock is held by someone else.
			if atomic.LoadUint32(state) == 0 && atomic.SwapUint32(state, 1) == 0 {
				return
			}
		}

		if yieldFn != nil {
			yieldFn()
		}
	}
}
