package device

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/ringdev/config"
	"github.com/c360/ringdev/errors"
	"github.com/c360/ringdev/health"
	"github.com/c360/ringdev/metric"
	"github.com/c360/ringdev/pkg/admission"
	"github.com/c360/ringdev/pkg/buffer"
	"github.com/c360/ringdev/pkg/gate"
)

// Endpoint is a bounded blocking byte ring that sessions attach to.
// It is safe for concurrent use. Construct one with New and share it.
type Endpoint struct {
	name        string
	ring        *buffer.Ring
	gate        *gate.Gate
	admission   *admission.Admission
	stats       *buffer.Statistics
	writeLimit  int
	interval    time.Duration
	bestEffort  bool
	dumpPreview int

	logger     *slog.Logger
	metrics    *endpointMetrics
	metricsReg *metric.MetricsRegistry
	traceEvery rate.Sometimes

	mu       sync.Mutex // protects sessions
	sessions map[string]*Session

	closed     atomic.Bool
	errorCount atomic.Int64
	lastErr    atomic.Value // string
	started    time.Time
}

// New builds an endpoint from cfg. The capacity is rounded up to a power of
// two; configuration problems are returned as invalid errors and ring
// allocation problems as fatal ones.
func New(cfg config.DeviceConfig, opts ...Option) (*Endpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := applyOptions(opts...)

	ring, err := buffer.NewRing(cfg.BufferCapacity)
	if err != nil {
		return nil, errors.WrapFatal(err, "Endpoint", "New", "allocate ring")
	}

	slots, err := admission.New(cfg.MaxSessions)
	if err != nil {
		return nil, err
	}

	writeLimit := ring.Cap()
	if cfg.MaxWriteSize > 0 {
		writeLimit = cfg.MaxWriteSize
	}
	if options.writeLimit > 0 {
		if options.writeLimit > ring.Cap() {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: write limit %d exceeds capacity %d", errors.ErrInvalidConfig, options.writeLimit, ring.Cap()),
				"Endpoint", "New", "apply write limit")
		}
		writeLimit = options.writeLimit
	}

	interval := cfg.DiagnosticInterval.Std()
	if options.interval > 0 {
		interval = options.interval
	}

	name := cfg.Name
	if name == "" {
		name = "ringdev"
	}

	e := &Endpoint{
		name:        name,
		ring:        ring,
		admission:   slots,
		stats:       buffer.NewStatistics(),
		writeLimit:  writeLimit,
		interval:    interval,
		bestEffort:  cfg.BestEffortStatus || options.bestEffort,
		dumpPreview: options.dumpPreview,
		logger:      options.logger.With("component", "endpoint", "endpoint", name),
		traceEvery:  rate.Sometimes{First: 3, Interval: options.dumpInterval},
		sessions:    make(map[string]*Session),
		started:     time.Now(),
	}
	e.gate = gate.New(ring, gate.WithWaitObserver(e.observeWait))

	if options.metricsReg != nil {
		m, err := newEndpointMetrics(options.metricsReg, e)
		if err != nil {
			return nil, errors.Wrap(err, "Endpoint", "New", "register metrics")
		}
		e.metrics = m
		e.metricsReg = options.metricsReg
	}

	e.logger.Info("Endpoint created",
		"capacity", ring.Cap(),
		"requested_capacity", cfg.BufferCapacity,
		"max_sessions", cfg.MaxSessions,
		"write_limit", writeLimit,
		"best_effort_status", e.bestEffort)

	return e, nil
}

// Name returns the endpoint name used in logs and metric labels.
func (e *Endpoint) Name() string {
	return e.name
}

// Capacity returns the ring capacity in bytes.
func (e *Endpoint) Capacity() int {
	return e.ring.Cap()
}

// WriteLimit returns the largest write the endpoint accepts.
func (e *Endpoint) WriteLimit() int {
	return e.writeLimit
}

// Open attaches a new session. The mode must be exactly ReadOnly or
// WriteOnly. Open never waits for a session slot: when the limit is reached
// it fails with ErrResourceBusy.
func (e *Endpoint) Open(mode Mode) (*Session, error) {
	if e.closed.Load() {
		return nil, e.fail("open", errors.WrapFatal(errors.ErrClosed, "Endpoint", "Open", "check endpoint state"))
	}
	if !mode.Valid() {
		return nil, e.fail("open", errors.WrapInvalid(
			fmt.Errorf("%w: unsupported mode %s", errors.ErrPermissionDenied, mode),
			"Endpoint", "Open", "validate mode"))
	}
	if !e.admission.TryAcquire() {
		e.stats.RejectedOpen()
		return nil, e.fail("open", errors.WrapTransient(
			fmt.Errorf("%w: %d of %d sessions open", errors.ErrResourceBusy, e.admission.Active(), e.admission.Max()),
			"Endpoint", "Open", "admit session"))
	}

	s := newSession(e, mode)

	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		_ = e.admission.Release()
		return nil, e.fail("open", errors.WrapFatal(errors.ErrClosed, "Endpoint", "Open", "register session"))
	}
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.metrics.recordOp("open")
	e.logger.Debug("Session opened", "session", s.id, "mode", mode.String(), "active", e.admission.Active())
	return s, nil
}

func (e *Endpoint) detach(s *Session) error {
	e.mu.Lock()
	delete(e.sessions, s.id)
	e.mu.Unlock()

	if err := e.admission.Release(); err != nil {
		e.logger.Error("Session release failed", "session", s.id, "error", err)
		return err
	}

	e.metrics.recordOp("close")
	e.logger.Debug("Session closed", "session", s.id, "active", e.admission.Active())
	return nil
}

// write pushes all of p or nothing. It blocks while the ring lacks room for
// the whole request.
func (e *Endpoint) write(ctx context.Context, p []byte) (int, error) {
	start := time.Now()

	guard, err := e.gate.AcquireWrite(ctx)
	if err != nil {
		return 0, e.fail("write", err)
	}
	defer guard.Release()

	if len(p) > e.writeLimit {
		e.stats.Oversized()
		return 0, e.fail("write", errors.WrapInvalid(
			fmt.Errorf("%w: %d bytes exceeds limit of %d", errors.ErrOversizedRequest, len(p), e.writeLimit),
			"Endpoint", "Write", "check request size"))
	}

	if e.ring.Available() < len(p) {
		e.stats.BlockedWrite()
		if err := e.gate.WaitUntilNotFull(ctx, guard, len(p)); err != nil {
			return 0, e.fail("write", err)
		}
	}

	n := e.ring.Push(p)
	e.gate.NotifyReaders()

	e.stats.Write(n)
	e.stats.UpdateOccupancy(int64(e.ring.Len()))
	e.metrics.recordWrite(n, time.Since(start))
	e.trace("write", n)
	return n, nil
}

// read returns between 1 and len(p) bytes, blocking while the ring is empty.
// When consume is false the bytes stay buffered.
func (e *Endpoint) read(ctx context.Context, p []byte, consume bool) (int, error) {
	op := "read"
	if !consume {
		op = "peek"
	}
	start := time.Now()

	guard, err := e.gate.AcquireRead(ctx)
	if err != nil {
		return 0, e.fail(op, err)
	}
	defer guard.Release()

	if e.ring.Len() == 0 {
		e.stats.BlockedRead()
		if err := e.gate.WaitUntilNotEmpty(ctx, guard); err != nil {
			return 0, e.fail(op, err)
		}
	}

	var n int
	if consume {
		n = e.ring.Pop(p)
		e.gate.NotifyWriters()
		e.stats.Read(n)
		e.stats.UpdateOccupancy(int64(e.ring.Len()))
	} else {
		n = e.ring.Peek(p)
		e.stats.Peek()
	}

	e.metrics.recordRead(op, n, time.Since(start))
	e.trace(op, n)
	return n, nil
}

// fail records err against the endpoint and returns it unchanged.
func (e *Endpoint) fail(op string, err error) error {
	e.errorCount.Add(1)
	e.lastErr.Store(err.Error())
	if stderrors.Is(err, errors.ErrInterrupted) {
		e.stats.Interrupt()
	}
	e.metrics.recordError(err)
	e.logger.Debug("Operation failed", "operation", op, "class", errors.Classify(err).String(), "error", err)
	return err
}

func (e *Endpoint) observeWait(cond gate.Condition, waited time.Duration, err error) {
	e.metrics.recordWait(cond, waited, err)
	e.logger.Debug("Wait finished", "condition", cond.String(), "waited", waited, "error", err)
}

// trace logs the buffer state after an operation at debug level, throttled.
func (e *Endpoint) trace(op string, n int) {
	if !e.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	e.traceEvery.Do(func() {
		e.logger.Debug("Buffer state",
			"operation", op,
			"bytes", n,
			"occupied", e.ring.Len(),
			"available", e.ring.Available())
	})
}

// Close shuts the endpoint down. Blocked readers and writers return
// ErrClosed, new operations fail with ErrClosed, and diagnostic timers stop.
// Sessions must still be closed by their owners to release their slots.
// Close is idempotent.
func (e *Endpoint) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.gate.Close()

	e.mu.Lock()
	open := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		open = append(open, s)
	}
	e.mu.Unlock()

	for _, s := range open {
		s.stopTimer()
	}

	if e.metricsReg != nil {
		e.metricsReg.UnregisterService(e.name)
	}

	e.logger.Info("Endpoint closed", "open_sessions", len(open), "bytes_in", e.stats.BytesIn(), "bytes_out", e.stats.BytesOut())
	return nil
}

// Closed reports whether Close has been called.
func (e *Endpoint) Closed() bool {
	return e.closed.Load()
}

// Stats is a point-in-time view of the endpoint.
type Stats struct {
	Name             string              `json:"name"`
	Capacity         int                 `json:"capacity"`
	Occupied         int                 `json:"occupied"`
	Available        int                 `json:"available"`
	ActiveSessions   int                 `json:"active_sessions"`
	MaxSessions      int                 `json:"max_sessions"`
	WriteLimit       int                 `json:"write_limit"`
	BestEffortStatus bool                `json:"best_effort_status"`
	Closed           bool                `json:"closed"`
	Errors           int64               `json:"errors"`
	Traffic          buffer.StatsSummary `json:"traffic"`
}

// Stats returns counters and levels without taking the buffer locks.
func (e *Endpoint) Stats() Stats {
	return Stats{
		Name:             e.name,
		Capacity:         e.ring.Cap(),
		Occupied:         e.ring.Len(),
		Available:        e.ring.Available(),
		ActiveSessions:   e.admission.Active(),
		MaxSessions:      e.admission.Max(),
		WriteLimit:       e.writeLimit,
		BestEffortStatus: e.bestEffort,
		Closed:           e.closed.Load(),
		Errors:           e.errorCount.Load(),
		Traffic:          e.stats.Summary(),
	}
}

// Health evaluates the endpoint for the health monitor.
func (e *Endpoint) Health() health.Status {
	lastErr, _ := e.lastErr.Load().(string)
	return health.Evaluate(e.name, health.Reading{
		Closed:         e.closed.Load(),
		Occupied:       e.ring.Len(),
		Capacity:       e.ring.Cap(),
		ActiveSessions: e.admission.Active(),
		MaxSessions:    e.admission.Max(),
		Uptime:         time.Since(e.started),
		ErrorCount:     e.errorCount.Load(),
		LastError:      lastErr,
	})
}
