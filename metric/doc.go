// Package metric provides Prometheus-based metrics collection and the HTTP
// server ringdev exposes for monitoring.
//
// # Architecture
//
// The package has three layers:
//
//  1. Core Metrics: process-level metrics registered automatically (Metrics type)
//  2. Registry: keyed registration of component metrics (MetricsRegistrar interface)
//  3. HTTP Server: /metrics, /health and /status (Server type)
//
// The endpoint registers its own counters and gauges through the registrar
// under its name, and records operation latency and error classes through the
// core metrics.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	monitor := health.NewMonitor()
//	server := metric.NewServer(9090, "/metrics", registry,
//		metric.WithHealthMonitor(monitor, "ringdev"),
//		metric.WithStatus(func() any { return ep.Stats() }),
//	)
//
//	go func() {
//		if err := server.Start(); err != nil {
//			slog.Error("Metrics server failed", "error", err)
//		}
//	}()
//	defer server.Stop(ctx)
//
// # Component Metrics
//
// Registration is keyed by "service.metric". Registering the same key twice,
// or a collector whose descriptor clashes with one already in the Prometheus
// registry, returns an invalid-class error:
//
//	bytes := prometheus.NewCounter(prometheus.CounterOpts{
//		Namespace: metric.Namespace,
//		Subsystem: "endpoint",
//		Name:      "bytes_written_total",
//		Help:      "Bytes written into the ring",
//	})
//	if err := registry.RegisterCounter("ring0", "bytes_written_total", bytes); err != nil {
//		return err
//	}
//
// UnregisterService drops everything a component registered, which lets a
// closed endpoint be rebuilt against the same registry.
//
// # Health
//
// With a health.Monitor attached, /health serves the aggregate status as JSON
// and answers 503 when it is unhealthy. Every read also refreshes the
// ringdev_health_status gauge for each component. Without a monitor /health
// answers a plain "OK".
package metric
