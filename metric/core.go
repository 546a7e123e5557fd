package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every ringdev metric.
const Namespace = "ringdev"

// Metrics contains process-level metrics shared by every endpoint
type Metrics struct {
	BuildInfo         *prometheus.GaugeVec
	OperationDuration *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "build_info",
				Help:      "Build information, value is always 1",
			},
			[]string{"version"},
		),

		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "endpoint",
				Name:      "operation_duration_seconds",
				Help:      "Endpoint operation duration in seconds, including time spent blocked",
				Buckets:   []float64{.00001, .0001, .001, .01, .1, 1, 10},
			},
			[]string{"endpoint", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors returned to callers, by class",
			},
			[]string{"endpoint", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"component"},
		),
	}
}

// RecordBuildInfo publishes the running version
func (c *Metrics) RecordBuildInfo(version string) {
	c.BuildInfo.WithLabelValues(version).Set(1)
}

// RecordOperation records how long an endpoint operation took
func (c *Metrics) RecordOperation(endpoint, operation string, duration time.Duration) {
	c.OperationDuration.WithLabelValues(endpoint, operation).Observe(duration.Seconds())
}

// RecordError increments the error counter for a class ("transient", "invalid", "fatal")
func (c *Metrics) RecordError(endpoint, class string) {
	c.ErrorsTotal.WithLabelValues(endpoint, class).Inc()
}

// RecordHealthStatus updates the health gauge from a health state name
func (c *Metrics) RecordHealthStatus(component, state string) {
	value := 0.0
	switch state {
	case "healthy":
		value = 2.0
	case "degraded":
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}
