// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the service's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// analysesTotal counts analysis runs by flow and outcome
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskview_analyses_total",
		Help: "Total analysis runs by flow and outcome",
	}, []string{"flow", "outcome"}) // flow: "initial" or "scenario"

	// predictorDuration tracks predictor round-trip latency
	predictorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskview_predictor_duration_seconds",
		Help:    "Predictor round-trip duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
	})

	// editRejectionsTotal counts field edits rejected by policy
	editRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskview_edit_rejections_total",
		Help: "Total field edits rejected by validation policy",
	}, []string{"field"})

	// concurrentRecomputeRejections counts recompute requests refused
	// because one was already in flight
	concurrentRecomputeRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskview_concurrent_recompute_rejections_total",
		Help: "Total recompute requests refused while one was in flight",
	})

	// activeScenarios tracks live scenario sessions
	activeScenarios = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskview_active_scenarios",
		Help: "Number of live scenario sessions",
	})

	// exportsTotal counts exports by format
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskview_exports_total",
		Help: "Total attribution exports by format",
	}, []string{"format"})
)

// RecordAnalysis records one analysis run.
func RecordAnalysis(flow string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	analysesTotal.WithLabelValues(flow, outcome).Inc()
}

// ObservePredictorDuration records one predictor round trip.
func ObservePredictorDuration(d time.Duration) {
	predictorDuration.Observe(d.Seconds())
}

// RecordEditRejection records a policy-rejected field edit.
func RecordEditRejection(field string) {
	editRejectionsTotal.WithLabelValues(field).Inc()
}

// RecordConcurrentRecomputeRejection records a refused recompute.
func RecordConcurrentRecomputeRejection() {
	concurrentRecomputeRejections.Inc()
}

// ScenarioOpened increments the live-scenario gauge.
func ScenarioOpened() { activeScenarios.Inc() }

// ScenarioClosed decrements the live-scenario gauge.
func ScenarioClosed() { activeScenarios.Dec() }

// RecordExport records an export download.
func RecordExport(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}
