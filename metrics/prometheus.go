package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes counters and timings through a Prometheus registry.
// Metric names such as "work.orders.handler.ack" are carried as a label
// value rather than flattened into the metric name, so arbitrary queue names
// stay valid.
type Prometheus struct {
	events  *prometheus.CounterVec
	timings *prometheus.HistogramVec
}

// NewPrometheus creates a Prometheus-backed metrics client and registers its
// collectors. Registration failures (for example a name collision on the
// registry) are returned here; after construction the client never fails.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sneakers_events_total",
			Help: "Total count of worker and handler events by metric name",
		}, []string{"name"}),
		timings: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sneakers_timing_seconds",
			Help:    "Duration of timed worker operations by metric name",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	if err := reg.Register(p.events); err != nil {
		return nil, fmt.Errorf("metrics: failed to register event counter: %w", err)
	}
	if err := reg.Register(p.timings); err != nil {
		return nil, fmt.Errorf("metrics: failed to register timing histogram: %w", err)
	}

	return p, nil
}

// Increment implements Client.
func (p *Prometheus) Increment(name string) {
	p.events.WithLabelValues(name).Inc()
}

// Timing implements Client.
func (p *Prometheus) Timing(name string, fn func()) {
	start := time.Now()
	fn()
	p.timings.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
