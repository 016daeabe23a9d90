// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/paper-intake/pkg/types"
)

const namespace = "paper_intake"

// Paper outcomes recorded by PapersTotal.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeDegraded  = "degraded"
)

// Metrics holds the counters of one pipeline run. Each instance owns its
// registry, so runs and tests never collide.
type Metrics struct {
	Registry *prometheus.Registry

	// PapersTotal counts papers by outcome.
	PapersTotal *prometheus.CounterVec

	// AnalysisTotal counts analyses by source (claude, openai, fallback).
	AnalysisTotal *prometheus.CounterVec

	// FetchAttempts counts HTTP fetch attempts, retries included.
	FetchAttempts prometheus.Counter

	// StageDuration observes per-stage durations in seconds.
	StageDuration *prometheus.HistogramVec

	// LastRunTimestamp is the unix time the run finished.
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics creates and registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		PapersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_total",
			Help:      "Papers handled in the run, by outcome.",
		}, []string{"outcome"}),
		AnalysisTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Analyses produced, by source.",
		}, []string{"source"}),
		FetchAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP fetch attempts including retries.",
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// RecordPaper counts one paper outcome.
func (m *Metrics) RecordPaper(outcome string) {
	m.PapersTotal.WithLabelValues(outcome).Inc()
}

// RecordAnalysis counts one analysis by its source.
func (m *Metrics) RecordAnalysis(src types.AnalysisSource) {
	m.AnalysisTotal.WithLabelValues(string(src)).Inc()
}

// RecordFetchAttempt counts one fetch attempt.
func (m *Metrics) RecordFetchAttempt() {
	m.FetchAttempts.Inc()
}

// ObserveStage records how long stage took since start.
func (m *Metrics) ObserveStage(stage types.Stage, start time.Time) {
	m.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry in Prometheus text format to path, for
// the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string, finished time.Time) error {
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
