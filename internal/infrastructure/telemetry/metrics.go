// Package telemetry exposes Prometheus metrics for pipeline runs.
//
// Metrics are fed from pipeline events, so the application layer never
// imports Prometheus directly. Each Metrics value owns its registry; the CLI
// writes it out in textfile-collector format after a run.
package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/crew/pkg/domain/events"
)

const namespace = "crew"

// Stage outcome label values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusMissing   = "missing"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	// StagesTotal counts processed stages. Labels: stage, status.
	StagesTotal *prometheus.CounterVec

	// StageDurationSeconds measures agent execution time. Labels: stage.
	StageDurationSeconds *prometheus.HistogramVec

	// StageOutputBytes tracks the size of the last output per stage.
	StageOutputBytes *prometheus.GaugeVec

	// RunsTotal counts pipeline runs. Labels: outcome (finished, canceled).
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures whole-run wall time.
	RunDurationSeconds prometheus.Histogram
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		StagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stages_total",
				Help:      "Pipeline stages processed by stage and status",
			},
			[]string{"stage", "status"},
		),
		StageDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Agent execution time per stage",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		StageOutputBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_output_bytes",
				Help:      "Size of the most recent output per stage",
			},
			[]string{"stage"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a whole pipeline run",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
	reg.MustRegister(
		m.StagesTotal,
		m.StageDurationSeconds,
		m.StageOutputBytes,
		m.RunsTotal,
		m.RunDurationSeconds,
	)
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handle records a pipeline event. Unknown events are ignored.
func (m *Metrics) Handle(_ context.Context, event events.DomainEvent) error {
	switch e := event.(type) {
	case *events.StageEvent:
		m.observeStage(e)
	case *events.PipelineCompleted:
		outcome := "finished"
		if e.Canceled {
			outcome = "canceled"
		}
		m.RunsTotal.WithLabelValues(outcome).Inc()
		m.RunDurationSeconds.Observe(e.Duration.Seconds())
	}
	return nil
}

func (m *Metrics) observeStage(e *events.StageEvent) {
	switch e.EventType() {
	case events.TypeStageCompleted:
		m.StagesTotal.WithLabelValues(e.Stage, StatusCompleted).Inc()
		m.StageDurationSeconds.WithLabelValues(e.Stage).Observe(e.Duration.Seconds())
		m.StageOutputBytes.WithLabelValues(e.Stage).Set(float64(e.Bytes))
	case events.TypeStageFailed:
		m.StagesTotal.WithLabelValues(e.Stage, StatusFailed).Inc()
		if e.Duration > 0 {
			m.StageDurationSeconds.WithLabelValues(e.Stage).Observe(e.Duration.Seconds())
		}
	case events.TypeStageMissing:
		m.StagesTotal.WithLabelValues(e.Stage, StatusMissing).Inc()
	}
}

// Registration returns the dispatcher registration for these metrics.
func (m *Metrics) Registration() events.HandlerRegistration {
	return events.HandlerRegistration{
		Name:    "Metrics",
		Handler: m.Handle,
		EventTypes: []string{
			events.TypeStageCompleted,
			events.TypeStageFailed,
			events.TypeStageMissing,
			events.TypePipelineCompleted,
		},
	}
}

// WriteTextfile writes the current values in the node_exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
