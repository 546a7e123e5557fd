package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/ringdev/device"
	"github.com/c360/ringdev/errors"
	"github.com/c360/ringdev/pkg/retry"
)

// Endpoint is the part of *device.Endpoint the generator drives.
type Endpoint interface {
	Open(mode device.Mode) (*device.Session, error)
}

// Config describes a workload.
type Config struct {
	Readers     int           `json:"readers"`
	Writers     int           `json:"writers"`
	Iterations  int           `json:"iterations"`   // operations per worker
	PayloadSize int           `json:"payload_size"` // bytes per write and per read iteration
	MaxThink    time.Duration `json:"max_think"`    // random pause before each operation, 0 disables

	// HoldSession keeps one session per worker for all iterations instead of
	// opening a fresh one each time.
	HoldSession bool `json:"hold_session"`

	// OpenRetry governs retries when Open fails. A zero value waits out
	// ErrResourceBusy with errors.BusyRetryConfig; empty RetryableErrors
	// retries busy opens only.
	OpenRetry errors.RetryConfig `json:"-"`
}

// DefaultConfig mirrors the classic harness: ten readers, ten writers, one
// three byte transfer each.
func DefaultConfig() Config {
	return Config{
		Readers:     10,
		Writers:     10,
		Iterations:  1,
		PayloadSize: 3,
		MaxThink:    500 * time.Millisecond,
		OpenRetry:   errors.BusyRetryConfig(),
	}
}

// Validate checks the workload shape.
func (c Config) Validate() error {
	switch {
	case c.Readers < 0 || c.Writers < 0:
		return invalid("reader and writer counts must not be negative (readers=%d, writers=%d)", c.Readers, c.Writers)
	case c.Readers+c.Writers == 0:
		return invalid("workload needs at least one reader or writer")
	case c.Iterations < 1:
		return invalid("iterations must be at least 1, got %d", c.Iterations)
	case c.PayloadSize < 1:
		return invalid("payload size must be at least 1, got %d", c.PayloadSize)
	case c.MaxThink < 0:
		return invalid("max think time must not be negative, got %s", c.MaxThink)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"Loadgen", "Validate", "validate workload")
}

// Report summarizes a finished run.
type Report struct {
	Readers      int           `json:"readers"`
	Writers      int           `json:"writers"`
	Writes       int64         `json:"writes"`
	Reads        int64         `json:"reads"`
	BytesWritten int64         `json:"bytes_written"`
	BytesRead    int64         `json:"bytes_read"`
	Opens        int64         `json:"opens"`
	BusyRetries  int64         `json:"busy_retries"`
	Duration     time.Duration `json:"duration"`
}

// Generator runs workloads against one endpoint.
type Generator struct {
	ep        Endpoint
	cfg       Config
	openRetry retry.Config
	logger    *slog.Logger

	writes       atomic.Int64
	reads        atomic.Int64
	bytesWritten atomic.Int64
	bytesRead    atomic.Int64
	opens        atomic.Int64
	busyRetries  atomic.Int64
}

// New creates a generator. A nil logger means slog.Default().
func New(ep Endpoint, cfg Config, logger *slog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OpenRetry.MaxRetries == 0 {
		cfg.OpenRetry = errors.BusyRetryConfig()
	}
	if len(cfg.OpenRetry.RetryableErrors) == 0 {
		cfg.OpenRetry.RetryableErrors = []error{errors.ErrResourceBusy}
	}
	return &Generator{
		ep:        ep,
		cfg:       cfg,
		openRetry: cfg.OpenRetry.ToRetryConfig(),
		logger:    logger.With("component", "loadgen"),
	}, nil
}

// Run starts every reader and writer and waits for them. The first failure
// cancels the rest. Every reader consumes exactly Iterations*PayloadSize
// bytes, so a workload whose readers want more than the writers produce runs
// until ctx ends.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	g.logger.Info("Workload started",
		"readers", g.cfg.Readers,
		"writers", g.cfg.Writers,
		"iterations", g.cfg.Iterations,
		"payload_size", g.cfg.PayloadSize)

	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < g.cfg.Writers; i++ {
		group.Go(func() error {
			return g.writer(gctx, i)
		})
	}
	for i := 0; i < g.cfg.Readers; i++ {
		group.Go(func() error {
			return g.reader(gctx, i)
		})
	}
	err := group.Wait()

	report := g.report(time.Since(start))
	if err != nil {
		g.logger.Warn("Workload stopped", "error", err, "bytes_written", report.BytesWritten, "bytes_read", report.BytesRead)
		return report, err
	}
	g.logger.Info("Workload finished",
		"duration", report.Duration,
		"bytes_written", report.BytesWritten,
		"bytes_read", report.BytesRead,
		"busy_retries", report.BusyRetries)
	return report, nil
}

func (g *Generator) report(elapsed time.Duration) Report {
	return Report{
		Readers:      g.cfg.Readers,
		Writers:      g.cfg.Writers,
		Writes:       g.writes.Load(),
		Reads:        g.reads.Load(),
		BytesWritten: g.bytesWritten.Load(),
		BytesRead:    g.bytesRead.Load(),
		Opens:        g.opens.Load(),
		BusyRetries:  g.busyRetries.Load(),
		Duration:     elapsed,
	}
}

// Payload returns the bytes writer id sends: its letter repeated.
func Payload(id, size int) []byte {
	return bytes.Repeat([]byte{byte('a' + id%26)}, size)
}

func (g *Generator) writer(ctx context.Context, id int) error {
	payload := Payload(id, g.cfg.PayloadSize)
	return g.loop(ctx, device.WriteOnly, func(s *device.Session) error {
		n, err := s.Write(ctx, payload)
		if err != nil {
			return errors.Wrap(err, "Loadgen", "writer", fmt.Sprintf("writer %d write", id))
		}
		g.writes.Add(1)
		g.bytesWritten.Add(int64(n))
		g.logger.Debug("Wrote payload", "writer", id, "bytes", n)
		return nil
	})
}

func (g *Generator) reader(ctx context.Context, id int) error {
	buf := make([]byte, g.cfg.PayloadSize)
	return g.loop(ctx, device.ReadOnly, func(s *device.Session) error {
		for got := 0; got < len(buf); {
			n, err := s.Read(ctx, buf[got:])
			if err != nil {
				return errors.Wrap(err, "Loadgen", "reader", fmt.Sprintf("reader %d read", id))
			}
			got += n
			g.reads.Add(1)
			g.bytesRead.Add(int64(n))
		}
		g.logger.Debug("Read payload", "reader", id, "data", string(buf))
		return nil
	})
}

// loop runs op Iterations times, each after a think pause, opening sessions
// as configured.
func (g *Generator) loop(ctx context.Context, mode device.Mode, op func(*device.Session) error) error {
	var held *device.Session
	defer func() {
		if held != nil {
			_ = held.Close()
		}
	}()

	for i := 0; i < g.cfg.Iterations; i++ {
		s := held
		if s == nil {
			var err error
			if s, err = g.open(ctx, mode); err != nil {
				return err
			}
		}
		if g.cfg.HoldSession {
			held = s
		}

		err := g.think(ctx)
		if err == nil {
			err = op(s)
		}
		if !g.cfg.HoldSession {
			_ = s.Close()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) open(ctx context.Context, mode device.Mode) (*device.Session, error) {
	attempts := 0
	s, err := retry.DoWithResult(ctx, g.openRetry, func() (*device.Session, error) {
		attempts++
		return g.ep.Open(mode)
	})
	if attempts > 1 {
		g.busyRetries.Add(int64(attempts - 1))
	}
	if err != nil {
		return nil, errors.Wrap(err, "Loadgen", "open", "open "+mode.String()+" session")
	}
	g.opens.Add(1)
	return s, nil
}

func (g *Generator) think(ctx context.Context) error {
	if g.cfg.MaxThink <= 0 {
		return nil
	}
	timer := time.NewTimer(rand.N(g.cfg.MaxThink))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Interrupted(ctx, "Loadgen", "think", "pause before operation")
	case <-timer.C:
		return nil
	}
}
