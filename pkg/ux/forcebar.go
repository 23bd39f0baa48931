// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
)

// =============================================================================
// Force bar
// =============================================================================

const (
	minBarWidth     = 20
	defaultBarWidth = 72
)

// RenderForceBar draws a force plot layout as a single horizontal bar of
// colored block glyphs, with baseline/predicted markers on a ruler line above
// and per-segment labels below. width is the bar width in cells; values below
// the minimum are widened.
func RenderForceBar(layout forceplot.Layout, width int, styled bool) string {
	if width < minBarWidth {
		width = defaultBarWidth
	}
	axis := layout.Axis
	span := axis.Max - axis.Min
	if span <= 0 {
		return ""
	}
	toCell := func(x float64) int {
		c := int(math.Round((x - axis.Min) / span * float64(width-1)))
		if c < 0 {
			c = 0
		}
		if c > width-1 {
			c = width - 1
		}
		return c
	}

	var b strings.Builder

	// Marker ruler: B at the baseline, P at the predicted value.
	ruler := make([]rune, width)
	for i := range ruler {
		ruler[i] = ' '
	}
	ruler[toCell(layout.Baseline.X)] = 'B'
	ruler[toCell(layout.Predicted.X)] = 'P'
	b.WriteString(maybeStyle(Styles.Axis, string(ruler), styled))
	b.WriteByte('\n')

	// Bar: one block run per segment, blue rightward of the baseline and red
	// leftward, axis dots everywhere else.
	bar := make([]rune, width)
	pol := make([]forceplot.Polarity, width)
	for i := range bar {
		bar[i] = '·'
		pol[i] = -1
	}
	for _, seg := range layout.Segments {
		c0, c1 := toCell(seg.X0), toCell(seg.X1)
		if c1 <= c0 {
			c1 = c0 + 1
		}
		for c := c0; c < c1 && c < width; c++ {
			bar[c] = '█'
			pol[c] = seg.Polarity
		}
	}
	b.WriteString(renderBarRuns(bar, pol, styled))
	b.WriteByte('\n')

	// Tick labels under the bar ends.
	lo := strconv.FormatFloat(axis.Min, 'f', -1, 64)
	hi := strconv.FormatFloat(axis.Max, 'f', -1, 64)
	gap := width - len(lo) - len(hi)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(maybeStyle(Styles.Axis, lo+strings.Repeat(" ", gap)+hi, styled))
	b.WriteByte('\n')

	// Segment legend, strongest driver first.
	segs := append([]forceplot.Segment(nil), layout.Segments...)
	sort.SliceStable(segs, func(i, j int) bool {
		return math.Abs(segs[i].Contribution) > math.Abs(segs[j].Contribution)
	})
	for _, seg := range segs {
		style := Styles.RiskUp
		arrow := "▲"
		if seg.Polarity == forceplot.Negative {
			style = Styles.RiskDown
			arrow = "▼"
		}
		line := fmt.Sprintf("  %s %s  %+.4f", arrow, seg.Label, seg.Contribution)
		b.WriteString(maybeStyle(style, line, styled))
		b.WriteByte('\n')
	}

	return b.String()
}

// renderBarRuns styles contiguous runs of equal polarity in one pass so the
// output carries one ANSI sequence per run instead of one per cell.
func renderBarRuns(bar []rune, pol []forceplot.Polarity, styled bool) string {
	var b strings.Builder
	i := 0
	for i < len(bar) {
		j := i
		for j < len(bar) && pol[j] == pol[i] {
			j++
		}
		run := string(bar[i:j])
		switch pol[i] {
		case forceplot.Positive:
			b.WriteString(maybeStyle(Styles.RiskUp, run, styled))
		case forceplot.Negative:
			b.WriteString(maybeStyle(Styles.RiskDown, run, styled))
		default:
			b.WriteString(maybeStyle(Styles.Axis, run, styled))
		}
		i = j
	}
	return b.String()
}

// =============================================================================
// Attribution table
// =============================================================================

// RenderAttributionTable prints the record's entries as an aligned text table,
// sorted by descending contribution magnitude, followed by the baseline and
// predicted value.
func RenderAttributionTable(rec *datatypes.AttributionRecord, styled bool) string {
	entries := append([]datatypes.Entry(nil), rec.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].Contribution) > math.Abs(entries[j].Contribution)
	})

	nameWidth := len("feature")
	for _, e := range entries {
		if len(e.FeatureName) > nameWidth {
			nameWidth = len(e.FeatureName)
		}
	}

	var b strings.Builder
	header := fmt.Sprintf("%-*s  %12s  %12s", nameWidth, "feature", "value", "contribution")
	b.WriteString(maybeStyle(Styles.Bold, header, styled))
	b.WriteByte('\n')
	for _, e := range entries {
		line := fmt.Sprintf("%-*s  %12s  %+12.4f", nameWidth,
			e.FeatureName, strconv.FormatFloat(e.InputValue, 'f', -1, 64), e.Contribution)
		switch {
		case e.Contribution > 0:
			b.WriteString(maybeStyle(Styles.RiskUp, line, styled))
		case e.Contribution < 0:
			b.WriteString(maybeStyle(Styles.RiskDown, line, styled))
		default:
			b.WriteString(maybeStyle(Styles.Muted, line, styled))
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(fmt.Sprintf("%-*s  %12.4f\n", nameWidth+14, "baseline", rec.Baseline))
	summary := fmt.Sprintf("%-*s  %12.4f", nameWidth+14, "predicted value", rec.PredictedValue)
	b.WriteString(maybeStyle(Styles.Bold, summary, styled))
	b.WriteByte('\n')
	return b.String()
}

func maybeStyle(s interface{ Render(...string) string }, text string, styled bool) string {
	if !styled {
		return text
	}
	return s.Render(text)
}
