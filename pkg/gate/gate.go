package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/c360/ringdev/errors"
)

// Level reports the fill level the wait predicates are evaluated against.
// *buffer.Ring satisfies it.
type Level interface {
	Len() int
	Available() int
}

// Condition identifies which wait a waiter blocked on.
type Condition int

const (
	// NotEmpty is the condition readers wait on.
	NotEmpty Condition = iota
	// NotFull is the condition writers wait on.
	NotFull
)

// String returns the label used in logs and metrics.
func (c Condition) String() string {
	switch c {
	case NotEmpty:
		return "not_empty"
	case NotFull:
		return "not_full"
	default:
		return "unknown"
	}
}

// WaitObserver is called once for every wait that actually blocked, with the
// total time spent and the error the wait ended with (nil when satisfied).
type WaitObserver func(cond Condition, waited time.Duration, err error)

// Option configures a Gate.
type Option func(*Gate)

// WithWaitObserver installs a callback for blocked waits.
func WithWaitObserver(fn WaitObserver) Option {
	return func(g *Gate) {
		g.observe = fn
	}
}

// Gate serializes readers against readers and writers against writers while
// letting one reader and one writer run at the same time.
type Gate struct {
	level Level

	readLock  *semaphore.Weighted
	writeLock *semaphore.Weighted

	notEmpty *signal
	notFull  *signal

	closed    chan struct{}
	closeOnce sync.Once

	observe WaitObserver
}

// New creates a gate over level.
func New(level Level, opts ...Option) *Gate {
	g := &Gate{
		level:     level,
		readLock:  semaphore.NewWeighted(1),
		writeLock: semaphore.NewWeighted(1),
		notEmpty:  newSignal(),
		notFull:   newSignal(),
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AcquireRead takes the read lock. It fails with ErrInterrupted if ctx ends
// first and with ErrClosed once the gate is closed.
func (g *Gate) AcquireRead(ctx context.Context) (*Guard, error) {
	return g.acquire(ctx, "AcquireRead", g.readLock)
}

// AcquireWrite takes the write lock.
func (g *Gate) AcquireWrite(ctx context.Context) (*Guard, error) {
	return g.acquire(ctx, "AcquireWrite", g.writeLock)
}

// AcquireBoth takes the read lock and then the write lock. Every caller that
// needs both uses this order.
func (g *Gate) AcquireBoth(ctx context.Context) (*Guard, error) {
	return g.acquire(ctx, "AcquireBoth", g.readLock, g.writeLock)
}

func (g *Gate) acquire(ctx context.Context, method string, locks ...*semaphore.Weighted) (*Guard, error) {
	if g.isClosed() {
		return nil, errors.WrapFatal(errors.ErrClosed, "Gate", method, "check gate state")
	}

	guard := &Guard{locks: locks}
	if err := guard.lock(ctx, method); err != nil {
		return nil, err
	}
	if g.isClosed() {
		guard.Release()
		return nil, errors.WrapFatal(errors.ErrClosed, "Gate", method, "check gate state")
	}
	return guard, nil
}

// WaitUntilNotEmpty blocks until the level reports data. The guard must hold
// the read lock. The lock is released while blocked and held again when this
// returns nil. On error the guard no longer holds its lock.
func (g *Gate) WaitUntilNotEmpty(ctx context.Context, guard *Guard) error {
	return g.wait(ctx, guard, NotEmpty, func() bool {
		return g.level.Len() > 0
	})
}

// WaitUntilNotFull blocks until at least required bytes are free. The guard
// must hold the write lock.
func (g *Gate) WaitUntilNotFull(ctx context.Context, guard *Guard, required int) error {
	return g.wait(ctx, guard, NotFull, func() bool {
		return g.level.Available() >= required
	})
}

func (g *Gate) wait(ctx context.Context, guard *Guard, cond Condition, ready func() bool) error {
	sig, method := g.notEmpty, "WaitUntilNotEmpty"
	if cond == NotFull {
		sig, method = g.notFull, "WaitUntilNotFull"
	}

	var start time.Time
	for {
		// Snapshot before checking so a notify racing with the check is kept.
		woken := sig.channel()
		if ready() {
			g.report(cond, start, nil)
			return nil
		}
		if start.IsZero() {
			start = time.Now()
		}

		guard.Release()

		var err error
		select {
		case <-woken:
		case <-ctx.Done():
			err = errors.Interrupted(ctx, "Gate", method, "wait for "+cond.String())
		case <-g.closed:
			err = errors.WrapFatal(errors.ErrClosed, "Gate", method, "wait for "+cond.String())
		}
		if err == nil {
			err = guard.lock(ctx, method)
		}
		if err == nil && g.isClosed() {
			guard.Release()
			err = errors.WrapFatal(errors.ErrClosed, "Gate", method, "wait for "+cond.String())
		}
		if err != nil {
			g.report(cond, start, err)
			return err
		}
	}
}

func (g *Gate) report(cond Condition, start time.Time, err error) {
	if g.observe == nil || start.IsZero() {
		return
	}
	g.observe(cond, time.Since(start), err)
}

// NotifyReaders wakes every goroutine waiting for data.
func (g *Gate) NotifyReaders() {
	g.notEmpty.broadcast()
}

// NotifyWriters wakes every goroutine waiting for space.
func (g *Gate) NotifyWriters() {
	g.notFull.broadcast()
}

// Close wakes all waiters with ErrClosed and refuses further acquisitions.
// Guards already held stay valid until released.
func (g *Gate) Close() {
	g.closeOnce.Do(func() {
		close(g.closed)
	})
}

// Done is closed when the gate is closed.
func (g *Gate) Done() <-chan struct{} {
	return g.closed
}

func (g *Gate) isClosed() bool {
	select {
	case <-g.closed:
		return true
	default:
		return false
	}
}

// Guard is a held lock, or pair of locks, obtained from a Gate.
// Release is idempotent so it can always be deferred.
type Guard struct {
	locks []*semaphore.Weighted
	held  int
}

func (gd *Guard) lock(ctx context.Context, method string) error {
	for gd.held < len(gd.locks) {
		if err := gd.locks[gd.held].Acquire(ctx, 1); err != nil {
			gd.Release()
			return errors.Interrupted(ctx, "Gate", method, "acquire lock")
		}
		gd.held++
	}
	return nil
}

// Held reports whether the guard currently holds its locks.
func (gd *Guard) Held() bool {
	return gd != nil && gd.held == len(gd.locks)
}

// Release drops every lock the guard holds, in reverse acquisition order.
func (gd *Guard) Release() {
	if gd == nil {
		return
	}
	for gd.held > 0 {
		gd.held--
		gd.locks[gd.held].Release(1)
	}
}

// signal is a broadcast condition. Waiters take the current channel and
// block on it; broadcast closes it and installs a fresh one.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) channel() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *signal) broadcast() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}
