package ingest

import (
	"sync/atomic"
	"time"
)

// WriteLock is a process-wide flag that suppresses ingestion writes
// during maintenance. Modeled as a pair of atomics reachable by the
// ingestion task and the scheduler task; no mutex is required since no
// other state is guarded by it (spec.md §9 "Ambient write-lock flag").
type WriteLock struct {
	flag  atomic.Bool
	setAt atomic.Int64
}

// NewWriteLock returns a cleared write lock.
func NewWriteLock() *WriteLock {
	return &WriteLock{}
}

// Set engages the lock. Called only by the scheduler task.
func (w *WriteLock) Set() {
	w.setAt.Store(time.Now().UnixNano())
	w.flag.Store(true)
}

// Clear releases the lock. Called only by the scheduler task.
func (w *WriteLock) Clear() {
	w.flag.Store(false)
}

// IsSet reports the current lock state. Called by the ingestion task
// before every frame.
func (w *WriteLock) IsSet() bool {
	return w.flag.Load()
}

// HeldSince reports how long the lock has been continuously set. Only
// meaningful when IsSet is true; exposed for the health endpoint's
// maintenance.duration_seconds field.
func (w *WriteLock) HeldSince() time.Duration {
	t := w.setAt.Load()
	if t == 0 {
		return 0
	}
	return time.Since(time.Unix(0, t))
}
