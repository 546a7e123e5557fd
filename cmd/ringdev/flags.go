package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool

	// Workload
	Readers     int
	Writers     int
	Iterations  int
	PayloadSize int
	MaxThink    time.Duration
	HoldSession bool
	Duration    time.Duration
	Linger      bool

	// Diagnostics
	Timer      bool
	DumpOnExit bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("RINGDEV_CONFIG", ""),
		"Path to a JSON or YAML configuration file; defaults apply when empty (env: RINGDEV_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("RINGDEV_CONFIG", ""),
		"Path to configuration file (env: RINGDEV_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("RINGDEV_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: RINGDEV_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("RINGDEV_LOG_FORMAT", "json"),
		"Log format: json, text (env: RINGDEV_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("RINGDEV_DEBUG", false),
		"Enable debug logging, including throttled buffer dumps (env: RINGDEV_DEBUG)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("RINGDEV_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: RINGDEV_SHUTDOWN_TIMEOUT)")

	fs.IntVar(&cfg.Readers, "readers",
		getEnvInt("RINGDEV_READERS", 0),
		"Number of workload readers (env: RINGDEV_READERS)")

	fs.IntVar(&cfg.Writers, "writers",
		getEnvInt("RINGDEV_WRITERS", 0),
		"Number of workload writers (env: RINGDEV_WRITERS)")

	fs.IntVar(&cfg.Iterations, "iterations",
		getEnvInt("RINGDEV_ITERATIONS", 1),
		"Operations per workload worker (env: RINGDEV_ITERATIONS)")

	fs.IntVar(&cfg.PayloadSize, "payload-size",
		getEnvInt("RINGDEV_PAYLOAD_SIZE", 3),
		"Bytes per write and per read iteration (env: RINGDEV_PAYLOAD_SIZE)")

	fs.DurationVar(&cfg.MaxThink, "max-think",
		getEnvDuration("RINGDEV_MAX_THINK", 500*time.Millisecond),
		"Upper bound of the random pause before each operation (env: RINGDEV_MAX_THINK)")

	fs.BoolVar(&cfg.HoldSession, "hold-session",
		getEnvBool("RINGDEV_HOLD_SESSION", false),
		"Keep one session per worker instead of reopening each iteration (env: RINGDEV_HOLD_SESSION)")

	fs.DurationVar(&cfg.Duration, "duration",
		getEnvDuration("RINGDEV_DURATION", 0),
		"Stop after this long, 0 runs until signalled (env: RINGDEV_DURATION)")

	fs.BoolVar(&cfg.Linger, "linger",
		getEnvBool("RINGDEV_LINGER", false),
		"Keep serving after the workload finishes (env: RINGDEV_LINGER)")

	fs.BoolVar(&cfg.Timer, "timer",
		getEnvBool("RINGDEV_TIMER", false),
		"Arm the periodic diagnostic timer (env: RINGDEV_TIMER)")

	fs.BoolVar(&cfg.DumpOnExit, "dump-on-exit",
		getEnvBool("RINGDEV_DUMP_ON_EXIT", false),
		"Log a buffer dump before shutting down (env: RINGDEV_DUMP_ON_EXIT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Readers < 0 || cfg.Writers < 0 {
		return fmt.Errorf("invalid workload: readers=%d writers=%d", cfg.Readers, cfg.Writers)
	}

	if cfg.Duration < 0 {
		return fmt.Errorf("invalid duration: %s", cfg.Duration)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	out := fs.Output()
	_, _ = fmt.Fprintf(out, `%s - bounded blocking byte ring endpoint

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(out, `
Examples:
  # Serve an idle endpoint with metrics on :9090
  %s --config=ringdev.yaml

  # Classic harness: ten readers and ten writers, three bytes each
  %s --readers=10 --writers=10 --log-format=text

  # Sustained load for a minute with the diagnostic timer armed
  %s --readers=4 --writers=4 --iterations=100000 --max-think=1ms --duration=1m --timer

  # Validate configuration only
  %s --config=ringdev.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
