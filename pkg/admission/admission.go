// Package admission bounds the number of concurrently attached sessions.
package admission

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/c360/ringdev/errors"
)

// Admission is a non-blocking counting gate. TryAcquire either takes a slot or
// fails immediately; it never waits for one to free up.
type Admission struct {
	slots  *semaphore.Weighted
	max    int
	active atomic.Int64
}

// New creates an admission gate allowing limit concurrent holders.
func New(limit int) (*Admission, error) {
	if limit < 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: max sessions must be at least 1, got %d", errors.ErrInvalidConfig, limit),
			"Admission", "New", "validate limit")
	}
	return &Admission{
		slots: semaphore.NewWeighted(int64(limit)),
		max:   limit,
	}, nil
}

// TryAcquire takes a slot if one is free.
func (a *Admission) TryAcquire() bool {
	if !a.slots.TryAcquire(1) {
		return false
	}
	a.active.Add(1)
	return true
}

// Release returns a slot. Releasing more than was acquired is an error and
// leaves the count unchanged.
func (a *Admission) Release() error {
	for {
		n := a.active.Load()
		if n <= 0 {
			return errors.WrapInvalid(
				fmt.Errorf("%w: release without matching acquire", errors.ErrInvalidArgument),
				"Admission", "Release", "release slot")
		}
		if a.active.CompareAndSwap(n, n-1) {
			a.slots.Release(1)
			return nil
		}
	}
}

// Active returns the number of slots currently held.
func (a *Admission) Active() int {
	return int(a.active.Load())
}

// Max returns the configured limit.
func (a *Admission) Max() int {
	return a.max
}
