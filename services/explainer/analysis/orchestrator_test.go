// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
)

// =============================================================================
// Fakes
// =============================================================================

type fakePredictor struct {
	resp      *datatypes.PredictorResponse
	err       error
	healthErr error
	calls     int
	gotFields map[string]*float64
}

func (f *fakePredictor) Predict(ctx context.Context, fields map[string]*float64) (*datatypes.PredictorResponse, error) {
	f.calls++
	f.gotFields = fields
	return f.resp, f.err
}

func (f *fakePredictor) Health(ctx context.Context) error { return f.healthErr }

func fp(v float64) *float64 { return &v }

func goodResponse() *datatypes.PredictorResponse {
	return &datatypes.PredictorResponse{
		BaseValue:     fp(0.2),
		ShapValues:    []float64{0.05, -0.06},
		FeatureNames:  []string{"anchor_age", "Sodium"},
		FeatureValues: []*float64{fp(67), nil},
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestRunInitialAnalysis_NormalizesResponse(t *testing.T) {
	fake := &fakePredictor{resp: goodResponse()}
	orch := NewOrchestrator(fake)

	rec, err := orch.RunInitialAnalysis(context.Background(), map[string]*float64{"anchor_age": fp(67)})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.InDelta(t, 0.2, rec.Baseline, 1e-12)
	assert.InDelta(t, 0.19, rec.PredictedValue, 1e-9)
	assert.Len(t, rec.Entries, 2)
}

func TestRunScenarioAnalysis_PassesFieldsThrough(t *testing.T) {
	fake := &fakePredictor{resp: goodResponse()}
	orch := NewOrchestrator(fake)

	fields := map[string]*float64{"anchor_age": fp(70), "Sodium": nil}
	_, err := orch.RunScenarioAnalysis(context.Background(), fields)
	require.NoError(t, err)
	require.Contains(t, fake.gotFields, "Sodium")
	assert.Nil(t, fake.gotFields["Sodium"])
}

func TestRun_PredictorErrorSurfacesWithoutRetry(t *testing.T) {
	cause := errors.New("backend down")
	fake := &fakePredictor{err: cause}
	orch := NewOrchestrator(fake)

	_, err := orch.RunInitialAnalysis(context.Background(), nil)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, fake.calls)
}

func TestRun_MalformedResponseRejected(t *testing.T) {
	resp := goodResponse()
	resp.FeatureNames = resp.FeatureNames[:1] // length mismatch
	fake := &fakePredictor{resp: resp}
	orch := NewOrchestrator(fake)

	_, err := orch.RunScenarioAnalysis(context.Background(), nil)
	assert.ErrorIs(t, err, datatypes.ErrMalformedResponse)
}

func TestHealth_Delegates(t *testing.T) {
	cause := errors.New("unhealthy")
	orch := NewOrchestrator(&fakePredictor{healthErr: cause})
	assert.ErrorIs(t, orch.Health(context.Background()), cause)

	orch = NewOrchestrator(&fakePredictor{})
	assert.NoError(t, orch.Health(context.Background()))
}
