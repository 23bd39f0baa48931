// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package export renders attribution records for download: a CSV/JSON table
// sorted by attribution magnitude, and a standalone HTML page embedding an
// SVG force plot.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
)

// Row is one line of the attribution table.
type Row struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Direction    string  `json:"direction"`
}

// Table is the export payload for CSV and JSON.
type Table struct {
	Baseline       float64 `json:"baseline"`
	PredictedValue float64 `json:"predicted_value"`
	Rows           []Row   `json:"rows"`
}

// BuildTable flattens a record into rows sorted by descending attribution
// magnitude, matching the visual prominence order of the force plot.
func BuildTable(rec *datatypes.AttributionRecord) Table {
	rows := make([]Row, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		dir := "increases risk"
		if e.Contribution < 0 {
			dir = "decreases risk"
		} else if e.Contribution == 0 {
			dir = "no effect"
		}
		rows = append(rows, Row{
			Feature:      e.FeatureName,
			Value:        e.InputValue,
			Contribution: e.Contribution,
			Direction:    dir,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].Contribution) > math.Abs(rows[j].Contribution)
	})
	return Table{
		Baseline:       rec.Baseline,
		PredictedValue: rec.PredictedValue,
		Rows:           rows,
	}
}

// WriteCSV writes the attribution table as CSV.
func WriteCSV(w io.Writer, rec *datatypes.AttributionRecord) error {
	table := BuildTable(rec)
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"feature", "value", "contribution", "direction"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range table.Rows {
		record := []string{
			r.Feature,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			strconv.FormatFloat(r.Contribution, 'f', -1, 64),
			r.Direction,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	summary := [][]string{
		{"baseline", strconv.FormatFloat(table.Baseline, 'f', -1, 64), "", ""},
		{"predicted", strconv.FormatFloat(table.PredictedValue, 'f', -1, 64), "", ""},
	}
	for _, record := range summary {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv summary: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the attribution table as indented JSON.
func WriteJSON(w io.Writer, rec *datatypes.AttributionRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(BuildTable(rec)); err != nil {
		return fmt.Errorf("writing json export: %w", err)
	}
	return nil
}

// WriteHTML writes a self-contained HTML page with an SVG force plot.
// The layout is computed with the same engine the interactive view uses.
func WriteHTML(w io.Writer, rec *datatypes.AttributionRecord, cfg forceplot.Config) error {
	layout := forceplot.Compute(rec, cfg)
	page := buildPage(rec, layout)
	if err := pageTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("rendering html export: %w", err)
	}
	return nil
}
