package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/ringdev/errors"
	"github.com/c360/ringdev/pkg/buffer"
)

// Defaults
const (
	DefaultBufferCapacity     = 64
	DefaultMaxSessions        = 4
	DefaultDiagnosticInterval = 5 * time.Second
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

// Config represents the complete application configuration.
// It is read once at startup and not changed afterwards.
type Config struct {
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
	Device  DeviceConfig  `json:"device" yaml:"device"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// DeviceConfig configures the endpoint
type DeviceConfig struct {
	Name               string   `json:"name,omitempty" yaml:"name,omitempty"`
	BufferCapacity     int      `json:"buffer_capacity" yaml:"buffer_capacity"`         // bytes, rounded up to a power of two
	MaxSessions        int      `json:"max_sessions" yaml:"max_sessions"`               // concurrent open sessions
	MaxWriteSize       int      `json:"max_write_size" yaml:"max_write_size"`           // 0 = rounded capacity
	DiagnosticInterval Duration `json:"diagnostic_interval" yaml:"diagnostic_interval"` // periodic dump period
	BestEffortStatus   bool     `json:"best_effort_status" yaml:"best_effort_status"`   // lock-free control reads
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// Duration is a time.Duration that decodes from "250ms" style strings or
// from integer nanoseconds, in JSON and YAML.
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON encodes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML encodes the duration as a string
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string or a number of nanoseconds
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch value := v.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(int64(value))
	case int:
		*d = Duration(int64(value))
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
	return nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// Validate checks the endpoint settings
func (d *DeviceConfig) Validate() error {
	if d.BufferCapacity <= 0 {
		return invalid("device.buffer_capacity must be positive, got %d", d.BufferCapacity)
	}
	if d.BufferCapacity > buffer.MaxCapacity {
		return invalid("device.buffer_capacity %d exceeds maximum %d", d.BufferCapacity, buffer.MaxCapacity)
	}
	if d.MaxSessions < 1 {
		return invalid("device.max_sessions must be at least 1, got %d", d.MaxSessions)
	}
	if d.MaxWriteSize < 0 {
		return invalid("device.max_write_size must not be negative, got %d", d.MaxWriteSize)
	}
	if rounded := d.RoundedCapacity(); d.MaxWriteSize > rounded {
		return invalid("device.max_write_size %d exceeds buffer capacity %d", d.MaxWriteSize, rounded)
	}
	if d.DiagnosticInterval <= 0 {
		return invalid("device.diagnostic_interval must be positive, got %s", d.DiagnosticInterval)
	}
	return nil
}

// RoundedCapacity returns the capacity the ring will actually have, or 0 if
// BufferCapacity is out of range.
func (d *DeviceConfig) RoundedCapacity() int {
	rounded, err := buffer.RoundUpPowerOfTwo(d.BufferCapacity)
	if err != nil {
		return 0
	}
	return rounded
}

// Validate checks the metrics settings
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Port < 0 || m.Port > 65535 {
		return invalid("metrics.port out of range: %d", m.Port)
	}
	if !strings.HasPrefix(m.Path, "/") {
		return invalid("metrics.path must start with '/', got %q", m.Path)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"Config", "Validate", "validate configuration")
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader with validation enabled
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "RINGDEV",
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("merge %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:               "ringdev",
			BufferCapacity:     DefaultBufferCapacity,
			MaxSessions:        DefaultMaxSessions,
			DiagnosticInterval: Duration(DefaultDiagnosticInterval),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    DefaultMetricsPort,
			Path:    DefaultMetricsPath,
		},
	}
}

// loadRaw loads a JSON or YAML file as a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, format, err := readConfig(path)
	if err != nil {
		return nil, err
	}

	if format == formatYAML {
		return decodeYAML(data)
	}

	if err := checkJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	ints := []struct {
		suffix string
		target *int
	}{
		{"_BUFFER_CAPACITY", &cfg.Device.BufferCapacity},
		{"_MAX_SESSIONS", &cfg.Device.MaxSessions},
		{"_MAX_WRITE_SIZE", &cfg.Device.MaxWriteSize},
		{"_METRICS_PORT", &cfg.Metrics.Port},
	}

	for _, o := range ints {
		key := l.envPrefix + o.suffix
		val, err := lookupEnv(key)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "parse "+key)
		}
		*o.target = n
	}

	key := l.envPrefix + "_DIAGNOSTIC_INTERVAL"
	val, err := lookupEnv(key)
	if err != nil {
		return err
	}
	if val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "parse "+key)
		}
		cfg.Device.DiagnosticInterval = Duration(d)
	}

	return nil
}

func lookupEnv(key string) (string, error) {
	val := os.Getenv(key)
	if err := checkEnvValue(key, val); err != nil {
		return "", errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "validate "+key)
	}
	return val, nil
}

// SaveToFile saves the configuration, as YAML for .yaml/.yml paths and JSON otherwise
func (c *Config) SaveToFile(path string) error {
	format, err := formatFor(path)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "SaveToFile", "check path")
	}

	var data []byte
	if format == formatYAML {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode configuration")
	}

	return writeConfig(path, data)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
