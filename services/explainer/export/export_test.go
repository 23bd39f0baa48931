// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
)

// =============================================================================
// Fixtures
// =============================================================================

func exportRecord() *datatypes.AttributionRecord {
	rec := &datatypes.AttributionRecord{
		Baseline: 0.2,
		Entries: []datatypes.Entry{
			{FeatureName: "anchor_age", InputValue: 67, Contribution: 0.05},
			{FeatureName: "BMI", InputValue: 31.2, Contribution: 0.08},
			{FeatureName: "Sodium", InputValue: 132, Contribution: -0.06},
			{FeatureName: "PT", InputValue: 12.1, Contribution: 0},
		},
	}
	rec.PredictedValue = rec.Baseline + rec.ContributionSum()
	return rec
}

// =============================================================================
// Table
// =============================================================================

func TestBuildTable_SortedByMagnitude(t *testing.T) {
	table := BuildTable(exportRecord())

	require.Len(t, table.Rows, 4)
	assert.Equal(t, "BMI", table.Rows[0].Feature)
	assert.Equal(t, "Sodium", table.Rows[1].Feature)
	assert.Equal(t, "anchor_age", table.Rows[2].Feature)
	assert.Equal(t, "PT", table.Rows[3].Feature)
}

func TestBuildTable_Directions(t *testing.T) {
	table := BuildTable(exportRecord())

	byName := map[string]Row{}
	for _, r := range table.Rows {
		byName[r.Feature] = r
	}
	assert.Equal(t, "increases risk", byName["BMI"].Direction)
	assert.Equal(t, "decreases risk", byName["Sodium"].Direction)
	assert.Equal(t, "no effect", byName["PT"].Direction)
}

// =============================================================================
// CSV / JSON
// =============================================================================

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportRecord()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	// Header + 4 rows + baseline + predicted.
	require.Len(t, records, 7)
	assert.Equal(t, []string{"feature", "value", "contribution", "direction"}, records[0])
	assert.Equal(t, "BMI", records[1][0])
	assert.Equal(t, "baseline", records[5][0])
	assert.Equal(t, "0.2", records[5][1])
	assert.Equal(t, "predicted", records[6][0])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, exportRecord()))

	var table Table
	require.NoError(t, json.Unmarshal(buf.Bytes(), &table))
	assert.InDelta(t, 0.2, table.Baseline, 1e-12)
	assert.InDelta(t, 0.27, table.PredictedValue, 1e-9)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, "BMI", table.Rows[0].Feature)
}

// =============================================================================
// HTML
// =============================================================================

func TestWriteHTML_ContainsPlotElements(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, exportRecord(), forceplot.Config{}))
	html := buf.String()

	assert.Contains(t, html, "<svg")
	// One rect per nonzero contribution.
	assert.Equal(t, 3, strings.Count(html, "<rect"))
	assert.Contains(t, html, colorPositive)
	assert.Contains(t, html, colorNegative)
	assert.Contains(t, html, "baseline 0.2")
	assert.Contains(t, html, "anchor_age = 67")
}

func TestWriteHTML_EscapesLabels(t *testing.T) {
	rec := exportRecord()
	rec.Entries[0].FeatureName = `<script>alert(1)</script>`
	rec.PredictedValue = rec.Baseline + rec.ContributionSum()

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, rec, forceplot.Config{}))
	assert.NotContains(t, buf.String(), "<script>alert")
}
