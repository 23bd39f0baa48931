// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package forceplot

import (
	"math"
	"testing"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func riskRecord() *datatypes.AttributionRecord {
	rec := &datatypes.AttributionRecord{
		Baseline: 0.2,
		Entries: []datatypes.Entry{
			{FeatureName: "anchor_age", InputValue: 60, Contribution: 0.05},
			{FeatureName: "systolic", InputValue: 140, Contribution: 0.03},
			{FeatureName: "Lymphocytes", InputValue: 28.5, Contribution: -0.02},
			{FeatureName: "BMI", InputValue: 24.1, Contribution: 0.08},
			{FeatureName: "Sodium", InputValue: 139, Contribution: -0.06},
			{FeatureName: "PT", InputValue: 12.3, Contribution: 0},
		},
	}
	rec.PredictedValue = rec.Baseline + rec.ContributionSum()
	return rec
}

// demoRecord mirrors the synthetic dollar-valued model the fixed 500 tick
// unit was tuned for.
func demoRecord() *datatypes.AttributionRecord {
	rec := &datatypes.AttributionRecord{
		Baseline: 22556.52,
		Entries: []datatypes.Entry{
			{FeatureName: "pct_built_before_1940", InputValue: 67.2, Contribution: 1376},
			{FeatureName: "remoteness", InputValue: 3.5325, Contribution: -619.5},
			{FeatureName: "crime_rate", InputValue: 0.40202, Contribution: -2280.3},
			{FeatureName: "num_rooms", InputValue: 6.382, Contribution: 793.8},
			{FeatureName: "connectedness", InputValue: 4.0, Contribution: 1400},
		},
	}
	rec.PredictedValue = rec.Baseline + rec.ContributionSum()
	return rec
}

func segmentsByPolarity(l Layout, p Polarity) []Segment {
	var out []Segment
	for _, s := range l.Segments {
		if s.Polarity == p {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// Partition and Ordering Tests
// =============================================================================

func TestCompute_ZeroContributionOmitted(t *testing.T) {
	layout := Compute(riskRecord(), Config{})

	assert.Len(t, layout.Segments, 5)
	for _, s := range layout.Segments {
		assert.NotEqual(t, "PT", s.FeatureName)
	}
}

func TestCompute_WidthsNonIncreasingWithinPolarity(t *testing.T) {
	layout := Compute(riskRecord(), Config{})

	for _, p := range []Polarity{Positive, Negative} {
		segs := segmentsByPolarity(layout, p)
		require.NotEmpty(t, segs)
		for i := 1; i < len(segs); i++ {
			assert.LessOrEqual(t, segs[i].Width(), segs[i-1].Width(),
				"polarity %v index %d", p, i)
		}
	}
}

func TestCompute_DominantDriversAdjacentToBaseline(t *testing.T) {
	layout := Compute(riskRecord(), Config{})

	pos := segmentsByPolarity(layout, Positive)
	require.Len(t, pos, 3)
	assert.Equal(t, "BMI", pos[0].FeatureName) // largest positive sits nearest
	assert.InDelta(t, 0.2, pos[0].X0, 1e-12)   // near edge at baseline

	neg := segmentsByPolarity(layout, Negative)
	require.Len(t, neg, 2)
	assert.Equal(t, "Sodium", neg[0].FeatureName)
	assert.InDelta(t, 0.2, neg[0].X1, 1e-12)
}

func TestCompute_SegmentsContiguousNoOverlap(t *testing.T) {
	layout := Compute(riskRecord(), Config{})

	pos := segmentsByPolarity(layout, Positive)
	for i := 1; i < len(pos); i++ {
		assert.InDelta(t, pos[i-1].X1, pos[i].X0, 1e-12)
	}
	neg := segmentsByPolarity(layout, Negative)
	for i := 1; i < len(neg); i++ {
		assert.InDelta(t, neg[i-1].X0, neg[i].X1, 1e-12)
	}

	// Pairwise: no two segments overlap in axis coordinates.
	for i, a := range layout.Segments {
		for j, b := range layout.Segments {
			if i == j {
				continue
			}
			assert.True(t, a.X1 <= b.X0+1e-12 || b.X1 <= a.X0+1e-12,
				"segments %s and %s overlap", a.FeatureName, b.FeatureName)
		}
	}
}

func TestCompute_TieBreakIsStable(t *testing.T) {
	rec := &datatypes.AttributionRecord{
		Baseline: 0.5,
		Entries: []datatypes.Entry{
			{FeatureName: "first", Contribution: 0.02},
			{FeatureName: "second", Contribution: 0.02},
		},
	}
	rec.PredictedValue = rec.Baseline + rec.ContributionSum()

	layout := Compute(rec, Config{})
	pos := segmentsByPolarity(layout, Positive)
	require.Len(t, pos, 2)
	assert.Equal(t, "first", pos[0].FeatureName)
	assert.Equal(t, "second", pos[1].FeatureName)
}

// =============================================================================
// Marker and Axis Tests
// =============================================================================

func TestCompute_MarkersAndBoundsContainEverything(t *testing.T) {
	rec := riskRecord()
	layout := Compute(rec, Config{})

	assert.InDelta(t, rec.Baseline, layout.Baseline.X, 1e-12)
	assert.InDelta(t, rec.PredictedValue, layout.Predicted.X, 1e-9)

	assert.LessOrEqual(t, layout.Axis.Min, layout.Baseline.X)
	assert.GreaterOrEqual(t, layout.Axis.Max, layout.Baseline.X)
	assert.LessOrEqual(t, layout.Axis.Min, layout.Predicted.X)
	assert.GreaterOrEqual(t, layout.Axis.Max, layout.Predicted.X)
	for _, s := range layout.Segments {
		assert.LessOrEqual(t, layout.Axis.Min, s.X0)
		assert.GreaterOrEqual(t, layout.Axis.Max, s.X1)
	}

	span := layout.Axis.Max - layout.Axis.Min
	assert.GreaterOrEqual(t, span+1e-9, 5*layout.Axis.Tick)
}

func TestCompute_MarkerDirectionFollowsPredictionSide(t *testing.T) {
	rec := riskRecord() // net positive
	layout := Compute(rec, Config{})
	assert.Equal(t, DirectionRight, layout.Predicted.Direction)

	for i := range rec.Entries {
		rec.Entries[i].Contribution = -math.Abs(rec.Entries[i].Contribution)
	}
	rec.PredictedValue = rec.Baseline + rec.ContributionSum()
	layout = Compute(rec, Config{})
	assert.Equal(t, DirectionLeft, layout.Predicted.Direction)
}

func TestCompute_FixedTickUnitDemoScale(t *testing.T) {
	layout := Compute(demoRecord(), Config{TickUnit: 500})

	assert.Equal(t, 500.0, layout.Axis.Tick)
	assert.Equal(t, 0.0, math.Mod(layout.Axis.Min, 500))
	assert.Equal(t, 0.0, math.Mod(layout.Axis.Max, 500))
	assert.GreaterOrEqual(t, layout.Axis.Max-layout.Axis.Min, 5*500.0)
}

func TestCompute_DerivedTickSuitsProbabilityScale(t *testing.T) {
	layout := Compute(riskRecord(), Config{})

	assert.Greater(t, layout.Axis.Tick, 0.0)
	assert.Less(t, layout.Axis.Tick, 0.2)
}

func TestCompute_ZeroEntriesStillValidBounds(t *testing.T) {
	rec := &datatypes.AttributionRecord{Baseline: 0.2, PredictedValue: 0.2}
	layout := Compute(rec, Config{})

	assert.Empty(t, layout.Segments)
	assert.InDelta(t, layout.Baseline.X, layout.Predicted.X, 1e-12)
	assert.False(t, math.IsNaN(layout.Axis.Min))
	assert.False(t, math.IsNaN(layout.Axis.Max))
	assert.Greater(t, layout.Axis.Max, layout.Axis.Min)
	assert.GreaterOrEqual(t, layout.Axis.Max-layout.Axis.Min+1e-9, 5*layout.Axis.Tick)
}

func TestCompute_ZeroBaselineZeroEntries(t *testing.T) {
	rec := &datatypes.AttributionRecord{}
	layout := Compute(rec, Config{})

	assert.False(t, math.IsNaN(layout.Axis.Min))
	assert.False(t, math.IsNaN(layout.Axis.Max))
	assert.Greater(t, layout.Axis.Max, layout.Axis.Min)
}

// =============================================================================
// Label Tests
// =============================================================================

func TestCompute_LabelRowsAlternateLeftToRight(t *testing.T) {
	layout := Compute(riskRecord(), Config{})

	ordered := make([]Segment, len(layout.Segments))
	copy(ordered, layout.Segments)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].AnchorX < ordered[i].AnchorX {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	for rank, s := range ordered {
		want := RowNear
		if rank%2 == 1 {
			want = RowFar
		}
		assert.Equal(t, want, s.LabelRow, "rank %d (%s)", rank, s.FeatureName)
	}
}

func TestCompute_LabelTextAndAnchor(t *testing.T) {
	layout := Compute(riskRecord(), Config{})

	for _, s := range layout.Segments {
		assert.Contains(t, s.Label, s.FeatureName)
		assert.InDelta(t, (s.X0+s.X1)/2, s.AnchorX, 1e-12)
	}
}

// =============================================================================
// Purity Tests
// =============================================================================

func TestCompute_DoesNotMutateInputAndIsDeterministic(t *testing.T) {
	rec := riskRecord()
	before := rec.Clone()

	first := Compute(rec, Config{})
	second := Compute(rec, Config{})

	assert.Equal(t, before, rec)
	assert.Equal(t, first, second)
}
