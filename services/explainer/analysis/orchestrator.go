// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis drives the analyze and recompute flows: call the
// predictor, normalize its response, validate the result. It is stateless;
// the scenario store owns lifecycle and the handlers own transport.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
)

var tracer = otel.Tracer("riskview.analysis")

// PredictorClient is the inference backend the orchestrator scores against.
type PredictorClient interface {
	Predict(ctx context.Context, fields map[string]*float64) (*datatypes.PredictorResponse, error)
	Health(ctx context.Context) error
}

// Orchestrator runs one prediction round trip per call. No retries: a
// failure is surfaced immediately so the UI can report it and leave the
// user's fields intact.
type Orchestrator struct {
	client PredictorClient
}

// NewOrchestrator wires the orchestrator to a predictor backend.
func NewOrchestrator(client PredictorClient) *Orchestrator {
	return &Orchestrator{client: client}
}

// RunInitialAnalysis scores an intake record and returns the normalized
// attribution. Unset fields are passed through as nulls.
func (o *Orchestrator) RunInitialAnalysis(ctx context.Context, fields map[string]*float64) (*datatypes.AttributionRecord, error) {
	return o.run(ctx, "Orchestrator.RunInitialAnalysis", fields)
}

// RunScenarioAnalysis scores an edited what-if record. Same pipeline as the
// initial analysis; the distinction exists so traces and logs can tell the
// two flows apart.
func (o *Orchestrator) RunScenarioAnalysis(ctx context.Context, fields map[string]*float64) (*datatypes.AttributionRecord, error) {
	return o.run(ctx, "Orchestrator.RunScenarioAnalysis", fields)
}

func (o *Orchestrator) run(ctx context.Context, spanName string, fields map[string]*float64) (*datatypes.AttributionRecord, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.Int("analysis.num_fields", len(fields)))

	resp, err := o.client.Predict(ctx, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rec, err := datatypes.NewAttributionRecord(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Predictor response failed normalization", "error", err)
		return nil, fmt.Errorf("normalizing predictor response: %w", err)
	}
	if err := rec.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Attribution record failed validation", "error", err)
		return nil, fmt.Errorf("validating attribution record: %w", err)
	}

	slog.Debug("Analysis complete",
		"baseline", rec.Baseline,
		"predicted", rec.PredictedValue,
		"num_entries", len(rec.Entries))
	return rec, nil
}

// Health reports whether the predictor backend is reachable and ready.
func (o *Orchestrator) Health(ctx context.Context) error {
	return o.client.Health(ctx)
}
