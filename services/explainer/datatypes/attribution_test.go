// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func fp(v float64) *float64 { return &v }

func arrayResponse() *PredictorResponse {
	return &PredictorResponse{
		Prediction:       fp(1),
		BaseValue:        fp(0.2),
		ShapValues:       []float64{0.05, 0.03, -0.02},
		FeatureNames:     []string{"anchor_age", "systolic", "Lymphocytes"},
		FeatureValues:    []*float64{fp(60), fp(140), fp(28.5)},
		ProbabilityScore: fp(0.72),
	}
}

func mapResponse() *PredictorResponse {
	return &PredictorResponse{
		Prediction:      fp(0),
		BaseValueCamel:  fp(0.2),
		FeatureNamesAlt: []string{"systolic", "anchor_age"},
		Features: map[string]FeatureEffect{
			"anchor_age": {Effect: 0.05, Value: fp(60)},
			"systolic":   {Effect: 0.03, Value: fp(140)},
		},
	}
}

// =============================================================================
// Adapter Tests
// =============================================================================

func TestNewAttributionRecord_ParallelArrays(t *testing.T) {
	rec, err := NewAttributionRecord(arrayResponse())
	require.NoError(t, err)

	require.Len(t, rec.Entries, 3)
	assert.Equal(t, 0.2, rec.Baseline)
	assert.Equal(t, "anchor_age", rec.Entries[0].FeatureName)
	assert.Equal(t, 60.0, rec.Entries[0].InputValue)
	assert.Equal(t, 0.05, rec.Entries[0].Contribution)
	assert.InDelta(t, 0.26, rec.PredictedValue, SumTolerance)
	assert.Equal(t, 0.72, rec.Probability)
	assert.Equal(t, 1, rec.PredictedClass)
}

func TestNewAttributionRecord_ObjectOfMaps_PreservesNamedOrder(t *testing.T) {
	rec, err := NewAttributionRecord(mapResponse())
	require.NoError(t, err)

	require.Len(t, rec.Entries, 2)
	assert.Equal(t, "systolic", rec.Entries[0].FeatureName)
	assert.Equal(t, "anchor_age", rec.Entries[1].FeatureName)
	assert.InDelta(t, 0.28, rec.PredictedValue, SumTolerance)
}

func TestNewAttributionRecord_LengthMismatch(t *testing.T) {
	resp := arrayResponse()
	resp.FeatureNames = resp.FeatureNames[:2]

	_, err := NewAttributionRecord(resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestNewAttributionRecord_ValueLengthMismatch(t *testing.T) {
	resp := arrayResponse()
	resp.FeatureValues = resp.FeatureValues[:1]

	_, err := NewAttributionRecord(resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestNewAttributionRecord_MissingBaseline(t *testing.T) {
	resp := arrayResponse()
	resp.BaseValue = nil

	_, err := NewAttributionRecord(resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestNewAttributionRecord_NonFiniteContribution(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		resp := arrayResponse()
		resp.ShapValues[1] = bad

		_, err := NewAttributionRecord(resp)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedResponse))
	}
}

func TestNewAttributionRecord_EmptyResponse(t *testing.T) {
	_, err := NewAttributionRecord(&PredictorResponse{BaseValue: fp(0.2)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))

	_, err = NewAttributionRecord(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestNewAttributionRecord_NullInputValueNormalizedToZero(t *testing.T) {
	resp := arrayResponse()
	resp.FeatureValues[2] = nil

	rec, err := NewAttributionRecord(resp)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Entries[2].InputValue)
}

func TestNewAttributionRecord_ObjectShapeMissingNamedFeature(t *testing.T) {
	resp := mapResponse()
	resp.FeatureNamesAlt = append(resp.FeatureNamesAlt, "BMI")

	_, err := NewAttributionRecord(resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

// =============================================================================
// Record Invariant Tests
// =============================================================================

func TestValidate_SumTolerance(t *testing.T) {
	rec := &AttributionRecord{
		Baseline: 0.2,
		Entries: []Entry{
			{FeatureName: "anchor_age", InputValue: 60, Contribution: 0.05},
			{FeatureName: "systolic", InputValue: 140, Contribution: 0.03},
		},
		PredictedValue: 0.28,
	}
	require.NoError(t, rec.Validate())

	rec.PredictedValue = 0.30
	err := rec.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestValidate_DuplicateFeature(t *testing.T) {
	rec := &AttributionRecord{
		Baseline: 0.2,
		Entries: []Entry{
			{FeatureName: "systolic", Contribution: 0.03},
			{FeatureName: "systolic", Contribution: 0.01},
		},
		PredictedValue: 0.24,
	}
	err := rec.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestClone_IsDeep(t *testing.T) {
	rec, err := NewAttributionRecord(arrayResponse())
	require.NoError(t, err)

	cp := rec.Clone()
	cp.Entries[0].Contribution = 99

	assert.Equal(t, 0.05, rec.Entries[0].Contribution)
	assert.Equal(t, 99.0, cp.Entries[0].Contribution)
}
