package sync

import (
	"sync/atomic"

	"microdragon/kernel"
)

const (
	cellEmpty uint32 = iota
	cellBusy
	cellSet
)

var errCellAlreadySet = &kernel.Error{Module: "sync", Message: "attempted to re-initialize set-once state"}

// Cell holds a value that may be set exactly once. It models process-wide
// state (the paging mode, the kernel address space root) that must never be
// re-initialized. The zero value is an empty cell.
type Cell[T any] struct {
	state uint32
	value T
}

// Set stores v in the cell. If the cell has already been set (or another
// Set is in progress) the stored value is left untouched and an error is
// returned; callers treat it as fatal.
func (c *Cell[T]) Set(v T) *kernel.Error {
	if !atomic.CompareAndSwapUint32(&c.state, cellEmpty, cellBusy) {
		return errCellAlreadySet
	}

	c.value = v
	atomic.StoreUint32(&c.state, cellSet)
	return nil
}

// Get returns the stored value and true if the cell has been set. Otherwise
// it returns the zero value of T and false.
func (c *Cell[T]) Get() (T, bool) {
	if atomic.LoadUint32(&c.state) != cellSet {
		var zero T
		return zero, false
	}

	return c.value, true
}

// IsSet returns true if Set has completed.
func (c *Cell[T]) IsSet() bool {
	return atomic.LoadUint32(&c.state) == cellSet
}
