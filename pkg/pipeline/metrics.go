package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's prometheus collectors.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RunsInFlight   prometheus.Gauge
	StageDuration  *prometheus.HistogramVec
	StageFailures  *prometheus.CounterVec
	ArtifactsTotal *prometheus.CounterVec
	Generations    *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Pass a fresh registry in
// tests; prometheus.DefaultRegisterer otherwise.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_pipeline",
				Name:      "runs_total",
				Help:      "Finished pipeline runs by kind and final state",
			},
			[]string{"kind", "state"},
		),
		RunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "report_pipeline",
				Name:      "runs_in_flight",
				Help:      "Pipeline runs currently executing",
			},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "report_pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_pipeline",
				Name:      "stage_failures_total",
				Help:      "Pipeline stage failures by stage",
			},
			[]string{"stage"},
		),
		ArtifactsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_pipeline",
				Name:      "artifacts_total",
				Help:      "Rendered artifacts by format",
			},
			[]string{"format"},
		),
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "report_pipeline",
				Name:      "generations_total",
				Help:      "Generation requests by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observeStage(stage State, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(string(stage)).Inc()
	}
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.RunsInFlight.Inc()
	}
}

func (m *Metrics) runFinished(kind Kind, state State) {
	if m == nil {
		return
	}
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(string(kind), string(state)).Inc()
}

func (m *Metrics) artifact(format string) {
	if m != nil {
		m.ArtifactsTotal.WithLabelValues(format).Inc()
	}
}

func (m *Metrics) generation(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Generations.WithLabelValues(outcome).Inc()
}
