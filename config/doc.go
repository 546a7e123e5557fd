// Package config loads the ringdev configuration.
//
// Configuration is read once at startup and is immutable afterwards. Loading
// applies, in order: built-in defaults, each file layer (JSON or YAML, chosen by
// extension), environment overrides, and finally validation.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/ringdev/base.yaml")
//	loader.AddLayer("/etc/ringdev/site.json") // overrides base
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err // invalid-class error wrapping errors.ErrInvalidConfig
//	}
//
// A layer only overrides the keys it sets; everything else keeps the value from
// earlier layers or the defaults.
//
// # Example
//
//	device:
//	  buffer_capacity: 100      # rounded up to 128
//	  max_sessions: 4
//	  max_write_size: 0         # 0 = rounded capacity
//	  diagnostic_interval: 5s
//	  best_effort_status: false
//	metrics:
//	  enabled: true
//	  port: 9090
//	  path: /metrics
//
// # Environment Overrides
//
//	RINGDEV_BUFFER_CAPACITY      device.buffer_capacity
//	RINGDEV_MAX_SESSIONS         device.max_sessions
//	RINGDEV_MAX_WRITE_SIZE       device.max_write_size
//	RINGDEV_DIAGNOSTIC_INTERVAL  device.diagnostic_interval
//	RINGDEV_METRICS_PORT         metrics.port
//
// A value that does not parse is an error rather than being ignored.
//
// # File Safety
//
// Files are size-limited, must be regular files with a .json, .yaml or .yml
// extension, and relative paths may not resolve outside the working directory.
// JSON nesting depth is bounded before decoding.
package config
