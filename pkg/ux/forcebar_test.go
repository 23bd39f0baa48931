// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
)

func barRecord() *datatypes.AttributionRecord {
	return &datatypes.AttributionRecord{
		Baseline: 0.2,
		Entries: []datatypes.Entry{
			{FeatureName: "anchor_age", InputValue: 67, Contribution: 0.08},
			{FeatureName: "BMI", InputValue: 31.2, Contribution: -0.03},
			{FeatureName: "glucose", InputValue: 140, Contribution: 0.02},
		},
		PredictedValue: 0.27,
	}
}

func TestRenderForceBar_PlainOutput(t *testing.T) {
	layout := forceplot.Compute(barRecord(), forceplot.Config{})
	out := RenderForceBar(layout, 72, false)
	require.NotEmpty(t, out)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// Ruler, bar, tick labels, then one legend line per segment.
	require.Len(t, lines, 3+len(layout.Segments))

	assert.Contains(t, lines[0], "B")
	assert.Contains(t, lines[0], "P")
	assert.Contains(t, lines[1], "█")

	// Unstyled output carries no ANSI escapes.
	assert.NotContains(t, out, "\033[")
}

func TestRenderForceBar_LegendOrderedByMagnitude(t *testing.T) {
	layout := forceplot.Compute(barRecord(), forceplot.Config{})
	out := RenderForceBar(layout, 72, false)

	ageIdx := strings.Index(out, "anchor_age = 67")
	bmiIdx := strings.Index(out, "BMI = 31.2")
	gluIdx := strings.Index(out, "glucose = 140")
	require.True(t, ageIdx >= 0 && bmiIdx >= 0 && gluIdx >= 0)
	assert.Less(t, ageIdx, bmiIdx)
	assert.Less(t, bmiIdx, gluIdx)

	assert.Contains(t, out, "▲ anchor_age = 67  +0.0800")
	assert.Contains(t, out, "▼ BMI = 31.2  -0.0300")
}

func TestRenderForceBar_NarrowWidthWidened(t *testing.T) {
	layout := forceplot.Compute(barRecord(), forceplot.Config{})
	out := RenderForceBar(layout, 3, false)
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Len(t, lines[0], defaultBarWidth)
}

func TestRenderForceBar_StyledCarriesBothColors(t *testing.T) {
	layout := forceplot.Compute(barRecord(), forceplot.Config{})
	out := RenderForceBar(layout, 72, true)
	// Both polarities are present in the record, so both risk styles render.
	assert.Contains(t, out, "▲")
	assert.Contains(t, out, "▼")
}

func TestRenderAttributionTable(t *testing.T) {
	out := RenderAttributionTable(barRecord(), false)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Contains(t, lines[0], "feature")
	assert.Contains(t, lines[0], "contribution")

	// Rows sorted by descending magnitude.
	assert.Contains(t, lines[1], "anchor_age")
	assert.Contains(t, lines[2], "BMI")
	assert.Contains(t, lines[3], "glucose")

	assert.Contains(t, out, "+0.0800")
	assert.Contains(t, out, "-0.0300")
	assert.Contains(t, out, "baseline")
	assert.Contains(t, out, "predicted value")
	assert.Contains(t, out, "0.2700")
}

func TestRenderAttributionTable_ZeroContributionMuted(t *testing.T) {
	rec := barRecord()
	rec.Entries = append(rec.Entries, datatypes.Entry{FeatureName: "pt", InputValue: 11.5})
	out := RenderAttributionTable(rec, false)
	assert.Contains(t, out, "pt")
	assert.Contains(t, out, "+0.0000")
}
