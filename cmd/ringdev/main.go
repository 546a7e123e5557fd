// Package main implements the ringdev command. It builds one endpoint from
// configuration, serves its metrics and health, and can drive it with a
// reader/writer workload.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/c360/ringdev/config"
	"github.com/c360/ringdev/device"
	"github.com/c360/ringdev/errors"
	"github.com/c360/ringdev/health"
	"github.com/c360/ringdev/metric"
	"github.com/c360/ringdev/pkg/loadgen"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ringdev"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cliCfg, logger, shouldExit, err := initializeCLI(args, stdout)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid",
			"buffer_capacity", cfg.Device.RoundedCapacity(),
			"max_sessions", cfg.Device.MaxSessions)
		return nil
	}

	registry := metric.NewMetricsRegistry()
	registry.CoreMetrics().RecordBuildInfo(Version)

	ep, err := device.New(cfg.Device,
		device.WithLogger(logger),
		device.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create endpoint: %w", err)
	}
	defer ep.Close()

	monitor := health.NewMonitor()
	monitor.Register(ep.Name(), ep.Health)

	if cliCfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliCfg.Duration)
		defer cancel()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var admin *device.Session
	if cliCfg.Timer {
		admin, err = armTimer(ctx, ep)
		if err != nil {
			return err
		}
		defer admin.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry,
			metric.WithHealthMonitor(monitor, appName),
			metric.WithStatus(func() any { return ep.Stats() }),
			metric.WithServerLogger(logger))

		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	if cliCfg.Readers+cliCfg.Writers > 0 {
		workload, err := loadgen.New(ep, workloadConfig(cliCfg), logger)
		if err != nil {
			return fmt.Errorf("configure workload: %w", err)
		}
		g.Go(func() error {
			report, err := workload.Run(gctx)
			logger.Info("Workload report",
				"writes", report.Writes,
				"reads", report.Reads,
				"bytes_written", report.BytesWritten,
				"bytes_read", report.BytesRead,
				"busy_retries", report.BusyRetries,
				"duration", report.Duration)
			if err != nil && !stoppedBy(gctx, err) {
				return err
			}
			if !cliCfg.Linger {
				stop()
			}
			return nil
		})
	} else if !cfg.Metrics.Enabled && cliCfg.Duration == 0 && !cliCfg.Timer {
		logger.Info("Nothing to run: metrics disabled and no workload configured")
		return nil
	}

	logger.Info("ringdev started",
		"endpoint", ep.Name(),
		"capacity", ep.Capacity(),
		"write_limit", ep.WriteLimit(),
		"metrics", cfg.Metrics.Enabled)

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()

	if cliCfg.DumpOnExit {
		dumpCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		if _, dumpErr := ep.Control(dumpCtx, device.CmdDump); dumpErr != nil {
			logger.Warn("Final dump failed", "error", dumpErr)
		}
		cancel()
	}

	stats := ep.Stats()
	logger.Info("ringdev shutdown complete",
		"bytes_in", stats.Traffic.BytesIn,
		"bytes_out", stats.Traffic.BytesOut,
		"max_occupancy", stats.Traffic.MaxOccupancy,
		"errors", stats.Errors)

	return err
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string, stdout io.Writer) (*CLIConfig, *slog.Logger, bool, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cliCfg, err := parseFlags(fs, args)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil, nil, true, nil
		}
		return nil, nil, false, fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		fs.SetOutput(stdout)
		printDetailedHelp(fs)
		return nil, nil, true, nil
	}

	logger := newLogger(stdout, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("Starting ringdev",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig loads configuration from path, or defaults plus environment
// overrides when path is empty
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func workloadConfig(cli *CLIConfig) loadgen.Config {
	cfg := loadgen.DefaultConfig()
	cfg.Readers = cli.Readers
	cfg.Writers = cli.Writers
	cfg.Iterations = cli.Iterations
	cfg.PayloadSize = cli.PayloadSize
	cfg.MaxThink = cli.MaxThink
	cfg.HoldSession = cli.HoldSession
	return cfg
}

// armTimer opens a read-only session used only for control and arms its
// diagnostic timer. The session holds one admission slot.
func armTimer(ctx context.Context, ep *device.Endpoint) (*device.Session, error) {
	s, err := ep.Open(device.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open control session: %w", err)
	}
	if _, err := s.Control(ctx, device.CmdTimerStart); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("arm diagnostic timer: %w", err)
	}
	return s, nil
}

// stoppedBy reports whether err is the workload unwinding because ctx ended.
func stoppedBy(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return stderrors.Is(err, errors.ErrInterrupted) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}

