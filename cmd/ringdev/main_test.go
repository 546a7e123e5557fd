package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ringdev.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

const quietConfig = `
device:
  name: cli-test
  buffer_capacity: 12
  max_sessions: 8
  diagnostic_interval: 5ms
metrics:
  enabled: false
`

func TestParseFlags_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseFlags(fs, nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 1, cfg.Iterations)
	assert.Equal(t, 3, cfg.PayloadSize)
	assert.Zero(t, cfg.Readers)
	assert.NoError(t, validateFlags(cfg))
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("RINGDEV_READERS", "4")
	t.Setenv("RINGDEV_LOG_FORMAT", "text")
	t.Setenv("RINGDEV_MAX_THINK", "10ms")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"--writers=2", "--debug"})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Readers)
	assert.Equal(t, 2, cfg.Writers)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Millisecond, cfg.MaxThink)
	assert.Equal(t, "debug", cfg.LogLevel, "--debug forces debug logging")
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CLIConfig)
	}{
		{"bad level", func(c *CLIConfig) { c.LogLevel = "verbose" }},
		{"bad format", func(c *CLIConfig) { c.LogFormat = "xml" }},
		{"missing config", func(c *CLIConfig) { c.ConfigPath = "does-not-exist.yaml" }},
		{"negative readers", func(c *CLIConfig) { c.Readers = -1 }},
		{"negative duration", func(c *CLIConfig) { c.Duration = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &CLIConfig{LogLevel: "info", LogFormat: "json"}
			tt.mutate(cfg)
			assert.Error(t, validateFlags(cfg))
		})
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--version"}, &out))
	assert.Equal(t, "ringdev version "+Version+"\n", out.String())
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--help"}, &out))
	assert.Contains(t, out.String(), "bounded blocking byte ring")
	assert.Contains(t, out.String(), "-readers")
}

func TestRun_Validate(t *testing.T) {
	path := writeConfig(t, quietConfig)

	var out bytes.Buffer
	err := run(context.Background(), []string{"--config", path, "--validate", "--log-format=text"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Configuration is valid")
	assert.Contains(t, out.String(), "buffer_capacity=16")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "device:\n  buffer_capacity: -1\n")
	err := run(context.Background(), []string{"--config", path}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_Workload(t *testing.T) {
	path := writeConfig(t, quietConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, []string{
		"--config", path,
		"--log-format=text",
		"--readers=3",
		"--writers=3",
		"--iterations=4",
		"--max-think=1ms",
		"--timer",
		"--dump-on-exit",
	}, &out)
	require.NoError(t, err)

	logs := out.String()
	assert.Contains(t, logs, "Workload report")
	assert.Contains(t, logs, "bytes_written=36")
	assert.Contains(t, logs, "bytes_read=36")
	assert.Contains(t, logs, "Buffer dump")
	assert.Contains(t, logs, "ringdev shutdown complete")
}

func TestRun_DurationStopsIdleEndpoint(t *testing.T) {
	path := writeConfig(t, quietConfig)

	start := time.Now()
	err := run(context.Background(), []string{"--config", path, "--duration=50ms"}, io.Discard)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
