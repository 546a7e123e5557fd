// Package ringdev provides a bounded blocking byte ring exposed as a
// device-like endpoint.
//
// Sessions attach to the endpoint as readers or writers. Writers block while
// the ring lacks room for a whole request; readers block while it is empty.
// One reader and one writer may run at the same time, the number of attached
// sessions is bounded, and a separate control path reports usage and dumps
// the buffered bytes.
//
// # Architecture
//
//	        Open(mode)                 Control(cmd)
//	            │                           │
//	   ┌────────▼─────────┐        ┌────────▼────────┐
//	   │ admission        │        │ snapshot under  │
//	   │ (TryAcquire)     │        │ read+write lock │
//	   └────────┬─────────┘        └────────┬────────┘
//	            │ Session                   │
//	   Read ────┤──── Write                 │
//	            ▼                           ▼
//	   ┌────────────────────────────────────────────┐
//	   │ gate: readLock | writeLock                 │
//	   │       notEmpty / notFull broadcast waits   │
//	   └─────────────────────┬──────────────────────┘
//	                         ▼
//	   ┌────────────────────────────────────────────┐
//	   │ ring: power-of-two capacity, atomic cursors│
//	   └────────────────────────────────────────────┘
//
// # Packages
//
// Core:
//   - device: Endpoint, Session, Mode, control Command set
//   - pkg/buffer: Ring and always-on Statistics
//   - pkg/gate: read/write locks and not-empty/not-full waits
//   - pkg/admission: non-blocking session limit
//
// Infrastructure:
//   - config: JSON/YAML configuration with environment overrides
//   - errors: classified errors and the endpoint's error sentinels
//   - metric: Prometheus registry and the metrics/health/status HTTP server
//   - health: health status, monitor and endpoint evaluation
//   - pkg/retry: exponential backoff
//   - pkg/loadgen: concurrent reader/writer workload
//
// # Binary
//
//	# Serve an endpoint with metrics on :9090
//	./bin/ringdev --config configs/ringdev.yaml
//
//	# Ten readers and ten writers exchanging three bytes each
//	./bin/ringdev --readers=10 --writers=10 --log-format=text
//
// # Error Handling
//
// Every failure matches one sentinel from the errors package and carries a
// class: ErrOversizedRequest, ErrPermissionDenied and ErrInvalidArgument are
// invalid; ErrResourceBusy and ErrInterrupted are transient; ErrClosed is
// fatal. Empty and full are blocking conditions, never errors.
package ringdev
