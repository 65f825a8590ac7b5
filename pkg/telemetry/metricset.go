package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PhaseMetrics counts and times the steps of one deployment phase, labelled
// by target.
type PhaseMetrics struct {
	Started *prometheus.CounterVec
	Handled *prometheus.CounterVec
	// Duration is nil until EnableHandlingTimeHistogram is called.
	Duration *prometheus.HistogramVec

	labels       []string
	durationOpts prometheus.HistogramOpts
}

func NewPhaseMetrics(app, phase string, labels []string, counterOpts ...CounterOption) *PhaseMetrics {
	opts := counterOptions(counterOpts)
	name := func(suffix string) string {
		return fmt.Sprintf("%s_%s_%s", app, phase, suffix)
	}

	started := opts.apply(prometheus.CounterOpts{
		Name: name("started_total"),
		Help: fmt.Sprintf("Total number of %s operations started.", phase),
	})
	handled := opts.apply(prometheus.CounterOpts{
		Name: name("handled_total"),
		Help: fmt.Sprintf("Total number of %s operations completed, regardless of success or failure.", phase),
	})

	return &PhaseMetrics{
		Started: prometheus.NewCounterVec(started, labels),
		Handled: prometheus.NewCounterVec(handled, append(append([]string{}, labels...), "status")),
		labels:  labels,
		durationOpts: prometheus.HistogramOpts{
			Name:    name("handling_seconds"),
			Help:    fmt.Sprintf("Histogram of latency (seconds) of %s operations.", phase),
			Buckets: prometheus.DefBuckets,
		},
	}
}

// EnableHandlingTimeHistogram turns on the duration histogram. Options are
// only honored on the first call.
func (m *PhaseMetrics) EnableHandlingTimeHistogram(opts ...HistogramOption) {
	if m.Duration != nil {
		return
	}
	for _, o := range opts {
		o(&m.durationOpts)
	}
	m.Duration = prometheus.NewHistogramVec(m.durationOpts, m.labels)
}

func (m *PhaseMetrics) Observe(start, end time.Time, status string, labelValues []string) {
	m.Started.WithLabelValues(labelValues...).Inc()
	m.Handled.WithLabelValues(append(append([]string{}, labelValues...), status)...).Inc()
	if m.Duration != nil {
		m.Duration.WithLabelValues(labelValues...).Observe(end.Sub(start).Seconds())
	}
}

func (m *PhaseMetrics) collectors() []prometheus.Collector {
	cs := []prometheus.Collector{m.Started, m.Handled}
	if m.Duration != nil {
		cs = append(cs, m.Duration)
	}
	return cs
}

func (m *PhaseMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

func (m *PhaseMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
