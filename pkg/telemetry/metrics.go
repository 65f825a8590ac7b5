package telemetry

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	PhaseEvaluate = "evaluate"
	PhasePush     = "push"
	PhaseDeploy   = "deploy"

	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder observes one step of a deployment run. node and profile are empty
// for steps that are not tied to a target.
type Recorder interface {
	Observe(phase, node, profile string, start, end time.Time, err error)
}

// Nop is a Recorder that drops every observation.
type Nop struct{}

func (Nop) Observe(string, string, string, time.Time, time.Time, error) {}

var labelNames = []string{"node", "profile"}

// Metrics is a Recorder that keeps one PhaseMetrics per phase.
type Metrics struct {
	phases map[string]*PhaseMetrics
}

// NewMetrics returns a Metrics object for the given phases. Use a new
// instance of Metrics when not using the default Prometheus metrics registry.
func NewMetrics(name string, phases []string, counterOpts ...CounterOption) *Metrics {
	m := &Metrics{phases: map[string]*PhaseMetrics{}}
	for _, p := range phases {
		m.phases[p] = NewPhaseMetrics(name, p, labelNames, counterOpts...)
	}
	return m
}

// deployBuckets spans a quick profile switch up to a full system build.
var deployBuckets = []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800}

// NewDeployMetrics returns Metrics for every phase of a deployment run with
// handling time histograms enabled. Every series carries the run ID.
func NewDeployMetrics(runID string) *Metrics {
	labels := prom.Labels{"run": runID}

	m := NewMetrics("deploy", []string{PhaseEvaluate, PhasePush, PhaseDeploy}, WithConstLabels(labels))
	m.EnableHandlingTimeHistogram(WithHistogramBuckets(deployBuckets), WithHistogramConstLabels(labels))

	return m
}

// EnableHandlingTimeHistogram enables histograms being registered when
// registering the Metrics on a Prometheus registry.
func (m *Metrics) EnableHandlingTimeHistogram(opts ...HistogramOption) {
	for _, ms := range m.phases {
		ms.EnableHandlingTimeHistogram(opts...)
	}
}

// Observe records one step. Unknown phases are ignored.
func (m *Metrics) Observe(phase, node, profile string, start, end time.Time, err error) {
	ms, ok := m.phases[phase]
	if !ok {
		return
	}

	status := StatusOK
	if err != nil {
		status = StatusError
	}

	ms.Observe(start, end, status, []string{node, profile})
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel and returns once
// the last descriptor has been sent.
func (m *Metrics) Describe(ch chan<- *prom.Desc) {
	for _, ms := range m.phases {
		ms.Describe(ch)
	}
}

// Collect is called by the Prometheus registry when collecting
// metrics. The implementation sends each collected metric via the
// provided channel and returns once the last metric has been sent.
func (m *Metrics) Collect(ch chan<- prom.Metric) {
	for _, ms := range m.phases {
		ms.Collect(ch)
	}
}

// Push sends every collected metric to a pushgateway, replacing the metrics
// previously pushed for job. pushBase is e.g. http://pushgateway:9091.
// See https://prometheus.io/docs/instrumenting/pushing/
func (m *Metrics) Push(pushBase, job string) error {
	if err := push.New(pushBase, job).Collector(m).Push(); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", pushBase, err)
	}
	return nil
}
