package device

import (
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/ringdev/errors"
	"github.com/c360/ringdev/metric"
	"github.com/c360/ringdev/pkg/gate"
)

// endpointMetrics holds Prometheus metrics for endpoint traffic.
type endpointMetrics struct {
	name string
	core *metric.Metrics

	bytesWritten prometheus.Counter
	bytesRead    prometheus.Counter
	operations   *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	interrupts   prometheus.Counter
	waits        *prometheus.HistogramVec

	// sampled at scrape time
	occupancy prometheus.GaugeFunc
	sessions  prometheus.GaugeFunc
	capacity  prometheus.Gauge
}

// newEndpointMetrics creates and registers endpoint metrics with the provided registry.
func newEndpointMetrics(registry *metric.MetricsRegistry, ep *Endpoint) (*endpointMetrics, error) {
	labels := prometheus.Labels{"endpoint": ep.name}

	m := &endpointMetrics{
		name: ep.name,
		core: registry.CoreMetrics(),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "bytes_written_total",
			ConstLabels: labels,
			Help:        "Total bytes written into the ring",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "bytes_read_total",
			ConstLabels: labels,
			Help:        "Total bytes read out of the ring",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "operations_total",
			ConstLabels: labels,
			Help:        "Completed endpoint operations",
		}, []string{"operation"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "rejections_total",
			ConstLabels: labels,
			Help:        "Requests refused without touching the buffer",
		}, []string{"reason"}),
		interrupts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "interrupts_total",
			ConstLabels: labels,
			Help:        "Blocking calls aborted by cancellation",
		}),
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "wait_seconds",
			ConstLabels: labels,
			Help:        "Time spent blocked on an empty or full buffer",
			Buckets:     []float64{.0001, .001, .01, .1, 1, 10},
		}, []string{"condition"}),
		occupancy: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "occupancy_bytes",
			ConstLabels: labels,
			Help:        "Bytes currently buffered",
		}, func() float64 { return float64(ep.ring.Len()) }),
		sessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "sessions_active",
			ConstLabels: labels,
			Help:        "Open sessions",
		}, func() float64 { return float64(ep.admission.Active()) }),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "endpoint",
			Name:        "capacity_bytes",
			ConstLabels: labels,
			Help:        "Ring capacity",
		}),
	}
	m.capacity.Set(float64(ep.ring.Cap()))

	register := []func() error{
		func() error { return registry.RegisterCounter(ep.name, "bytes_written_total", m.bytesWritten) },
		func() error { return registry.RegisterCounter(ep.name, "bytes_read_total", m.bytesRead) },
		func() error { return registry.RegisterCounterVec(ep.name, "operations_total", m.operations) },
		func() error { return registry.RegisterCounterVec(ep.name, "rejections_total", m.rejections) },
		func() error { return registry.RegisterCounter(ep.name, "interrupts_total", m.interrupts) },
		func() error { return registry.RegisterHistogramVec(ep.name, "wait_seconds", m.waits) },
		func() error { return registry.RegisterCollector(ep.name, "occupancy_bytes", m.occupancy) },
		func() error { return registry.RegisterCollector(ep.name, "sessions_active", m.sessions) },
		func() error { return registry.RegisterGauge(ep.name, "capacity_bytes", m.capacity) },
	}
	for _, fn := range register {
		if err := fn(); err != nil {
			registry.UnregisterService(ep.name)
			return nil, err
		}
	}

	return m, nil
}

// The record methods are no-ops on a nil receiver so the endpoint can call
// them unconditionally.

func (m *endpointMetrics) recordWrite(n int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.bytesWritten.Add(float64(n))
	m.operations.WithLabelValues("write").Inc()
	m.core.RecordOperation(m.name, "write", elapsed)
}

func (m *endpointMetrics) recordRead(op string, n int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if op == "read" {
		m.bytesRead.Add(float64(n))
	}
	m.operations.WithLabelValues(op).Inc()
	m.core.RecordOperation(m.name, op, elapsed)
}

func (m *endpointMetrics) recordOp(op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

func (m *endpointMetrics) recordWait(cond gate.Condition, waited time.Duration, _ error) {
	if m == nil {
		return
	}
	m.waits.WithLabelValues(cond.String()).Observe(waited.Seconds())
}

func (m *endpointMetrics) recordError(err error) {
	if m == nil {
		return
	}
	m.core.RecordError(m.name, errors.Classify(err).String())

	switch {
	case stderrors.Is(err, errors.ErrInterrupted):
		m.interrupts.Inc()
	case stderrors.Is(err, errors.ErrOversizedRequest):
		m.rejections.WithLabelValues("oversized").Inc()
	case stderrors.Is(err, errors.ErrResourceBusy):
		m.rejections.WithLabelValues("busy").Inc()
	case stderrors.Is(err, errors.ErrPermissionDenied):
		m.rejections.WithLabelValues("permission").Inc()
	case stderrors.Is(err, errors.ErrInvalidArgument):
		m.rejections.WithLabelValues("invalid_argument").Inc()
	}
}
