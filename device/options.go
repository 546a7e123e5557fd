package device

import (
	"log/slog"
	"time"

	"github.com/c360/ringdev/metric"
)

// Option configures an Endpoint using the functional options pattern.
type Option func(*endpointOptions)

// endpointOptions holds optional collaborators. Statistics are always
// collected and are not an option.
type endpointOptions struct {
	logger *slog.Logger

	// metricsReg is optional; when set the endpoint also exports Prometheus metrics
	metricsReg *metric.MetricsRegistry

	bestEffort   bool
	writeLimit   int
	interval     time.Duration
	dumpPreview  int
	dumpInterval time.Duration
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(opts *endpointOptions) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics export. A nil registry is ignored.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(opts *endpointOptions) {
		if registry != nil {
			opts.metricsReg = registry
		}
	}
}

// WithBestEffortStatus makes status commands read the cursors without taking
// the buffer locks. Results may be momentarily inconsistent under concurrent
// traffic, but a status read never waits behind a reader or writer.
func WithBestEffortStatus() Option {
	return func(opts *endpointOptions) {
		opts.bestEffort = true
	}
}

// WithWriteLimit overrides the largest accepted write. It cannot exceed the
// rounded capacity; values <= 0 are ignored.
func WithWriteLimit(n int) Option {
	return func(opts *endpointOptions) {
		if n > 0 {
			opts.writeLimit = n
		}
	}
}

// WithDiagnosticInterval overrides the period of the session diagnostic timer.
func WithDiagnosticInterval(d time.Duration) Option {
	return func(opts *endpointOptions) {
		if d > 0 {
			opts.interval = d
		}
	}
}

// WithDumpPreview sets how many buffered bytes a dump shows. Defaults to 32.
func WithDumpPreview(n int) Option {
	return func(opts *endpointOptions) {
		if n > 0 {
			opts.dumpPreview = n
		}
	}
}

// WithTraceInterval sets the minimum spacing of the per-operation debug dumps.
// Defaults to one second.
func WithTraceInterval(d time.Duration) Option {
	return func(opts *endpointOptions) {
		if d > 0 {
			opts.dumpInterval = d
		}
	}
}

func applyOptions(options ...Option) *endpointOptions {
	opts := &endpointOptions{
		logger:       slog.Default(),
		dumpPreview:  32,
		dumpInterval: time.Second,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
