// Package health provides the health model served by ringdev at /health.
//
// # Health States
//
// Three states are reported:
//   - healthy: the endpoint accepts sessions and has room in the buffer
//   - degraded: the buffer is full or the session limit is reached, so callers
//     will block or be refused until something drains
//   - unhealthy: the endpoint is closed
//
// # Core Types
//
// Status is a single health report with an optional Metrics block and nested
// sub-statuses. Evaluate turns a Reading of raw endpoint state into a Status.
//
// Monitor aggregates components. A component is either pushed with Update, or
// registered as a Probe that is called whenever the monitor is read:
//
//	monitor := health.NewMonitor()
//	monitor.Register("endpoint", ep.Health)
//	monitor.UpdateHealthy("metrics-server", "listening")
//
//	status := monitor.AggregateHealth("ringdev")
//	if !status.Healthy {
//		log.Printf("ringdev is %s: %s", status.Status, status.Message)
//	}
//
// Aggregation: any unhealthy component makes the aggregate unhealthy; otherwise
// any degraded component makes it degraded.
//
// # Sanitization
//
// Error messages attached by Evaluate are stripped of URLs, file paths, IP
// addresses, ports and credentials before they are exposed.
package health
