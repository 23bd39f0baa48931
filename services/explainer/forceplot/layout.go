// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package forceplot lays out a horizontal force diagram for an attribution
// record: contiguous signed contribution segments stacked left and right of a
// baseline marker, with nice axis bounds and collision-avoiding labels.
//
// The engine is a pure function from record to geometry. It knows nothing
// about rendering surfaces; SVG export, the terminal renderer, and any web
// client all consume the same Layout.
package forceplot

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
)

// =============================================================================
// Output types
// =============================================================================

// Polarity marks which side of the baseline a segment extends toward.
type Polarity int

const (
	// Positive segments increase risk and stack rightward from the baseline.
	Positive Polarity = iota
	// Negative segments decrease risk and stack leftward.
	Negative
)

func (p Polarity) String() string {
	if p == Negative {
		return "negative"
	}
	return "positive"
}

// LabelRow selects which of the two alternating label rows a segment's label
// occupies. Alternation keeps labels of narrow adjacent segments from
// colliding.
type LabelRow int

const (
	// RowNear is the row closest to the bar.
	RowNear LabelRow = iota
	// RowFar is the row below RowNear.
	RowFar
)

// Direction is the way a marker's boundary glyph points.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Segment is one feature's contribution laid out on the axis.
type Segment struct {
	// FeatureName identifies the entry this segment was built from.
	FeatureName string `json:"feature_name"`

	// X0 and X1 are the segment bounds in axis coordinates, X0 < X1.
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`

	// Polarity is the segment's sign partition.
	Polarity Polarity `json:"polarity"`

	// Contribution is the signed contribution the width was derived from.
	Contribution float64 `json:"contribution"`

	// Label is the display text: "feature = value".
	Label string `json:"label"`

	// LabelRow alternates between the two label rows.
	LabelRow LabelRow `json:"label_row"`

	// AnchorX is where the vertical leader line meets the bar: the
	// segment's horizontal center.
	AnchorX float64 `json:"anchor_x"`
}

// Width returns the segment width in axis units.
func (s Segment) Width() float64 { return s.X1 - s.X0 }

// Marker is a fixed axis position with a direction-indicating glyph.
type Marker struct {
	X         float64   `json:"x"`
	Direction Direction `json:"direction"`
}

// Axis holds the numeric bounds and tick unit of the shared axis.
type Axis struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Tick float64 `json:"tick"`
}

// Ticks returns the tick positions from Min to Max inclusive.
func (a Axis) Ticks() []float64 {
	if a.Tick <= 0 {
		return nil
	}
	var out []float64
	for x := a.Min; x <= a.Max+a.Tick/2; x += a.Tick {
		out = append(out, x)
	}
	return out
}

// Layout is the complete drawable description of a force plot.
type Layout struct {
	Axis Axis `json:"axis"`

	// Baseline marks the model's reference output.
	Baseline Marker `json:"baseline"`

	// Predicted marks baseline + sum of contributions.
	Predicted Marker `json:"predicted"`

	// Segments lists negative segments (nearest the baseline first),
	// then positive segments (nearest the baseline first).
	Segments []Segment `json:"segments"`
}

// =============================================================================
// Configuration
// =============================================================================

// Config tunes the nice-bounds rule.
//
// The demo deployment this product grew out of hard-coded TickUnit 500 for a
// synthetic dollar-valued model. Risk probabilities live on a much smaller
// scale, so by default the tick unit is derived from the magnitude range of
// the record; set TickUnit to force a fixed unit.
type Config struct {
	// TickUnit is the axis tick spacing. Zero derives it from the data.
	TickUnit float64

	// MinSpanTicks is the minimum axis span in tick units. Zero means 5.
	MinSpanTicks int
}

func (c Config) minSpanTicks() int {
	if c.MinSpanTicks > 0 {
		return c.MinSpanTicks
	}
	return 5
}

// =============================================================================
// Engine
// =============================================================================

// Compute lays out the force plot for a record.
//
// Steps:
//  1. Partition entries by contribution sign; exact zeros are omitted.
//  2. Sort each partition by descending |contribution| so dominant drivers
//     sit adjacent to the baseline.
//  3. Stack positive segments rightward from the baseline, negative ones
//     leftward, each near edge touching the previous far edge.
//  4. Place baseline and predicted-value markers, glyphs pointing from
//     baseline toward prediction.
//  5. Expand the tight bounding range of {baseline, predicted, extents}
//     outward to tick multiples, padding symmetrically until the span is at
//     least MinSpanTicks ticks.
//  6. Alternate labels between two rows in left-to-right segment order.
//
// Compute never mutates its input and is deterministic for a given record.
func Compute(rec *datatypes.AttributionRecord, cfg Config) Layout {
	var positive, negative []datatypes.Entry
	for _, e := range rec.Entries {
		switch {
		case e.Contribution > 0:
			positive = append(positive, e)
		case e.Contribution < 0:
			negative = append(negative, e)
		}
	}
	sortByMagnitude(positive)
	sortByMagnitude(negative)

	segments := make([]Segment, 0, len(positive)+len(negative))

	// Negative side stacks leftward from the baseline.
	leftCursor := rec.Baseline
	for _, e := range negative {
		width := math.Abs(e.Contribution)
		seg := Segment{
			FeatureName:  e.FeatureName,
			X0:           leftCursor - width,
			X1:           leftCursor,
			Polarity:     Negative,
			Contribution: e.Contribution,
			Label:        segmentLabel(e),
		}
		seg.AnchorX = (seg.X0 + seg.X1) / 2
		segments = append(segments, seg)
		leftCursor = seg.X0
	}

	// Positive side stacks rightward.
	rightCursor := rec.Baseline
	for _, e := range positive {
		seg := Segment{
			FeatureName:  e.FeatureName,
			X0:           rightCursor,
			X1:           rightCursor + e.Contribution,
			Polarity:     Positive,
			Contribution: e.Contribution,
			Label:        segmentLabel(e),
		}
		seg.AnchorX = (seg.X0 + seg.X1) / 2
		segments = append(segments, seg)
		rightCursor = seg.X1
	}

	predicted := rec.Baseline + rec.ContributionSum()

	lo := math.Min(math.Min(leftCursor, rec.Baseline), predicted)
	hi := math.Max(math.Max(rightCursor, rec.Baseline), predicted)

	tick := cfg.TickUnit
	if tick <= 0 {
		tick = deriveTick(lo, hi, rec.Baseline)
	}
	axisMin, axisMax := niceBounds(lo, hi, tick, cfg.minSpanTicks())

	assignLabelRows(segments)

	dir := DirectionRight
	if predicted < rec.Baseline {
		dir = DirectionLeft
	}

	return Layout{
		Axis:      Axis{Min: axisMin, Max: axisMax, Tick: tick},
		Baseline:  Marker{X: rec.Baseline, Direction: dir},
		Predicted: Marker{X: predicted, Direction: dir},
		Segments:  segments,
	}
}

// sortByMagnitude orders entries by descending |contribution|, keeping
// response order for ties so layout stays deterministic.
func sortByMagnitude(entries []datatypes.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].Contribution) > math.Abs(entries[j].Contribution)
	})
}

// assignLabelRows alternates rows in left-to-right order of segment centers.
func assignLabelRows(segments []Segment) {
	order := make([]int, len(segments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return segments[order[a]].AnchorX < segments[order[b]].AnchorX
	})
	for rank, idx := range order {
		if rank%2 == 0 {
			segments[idx].LabelRow = RowNear
		} else {
			segments[idx].LabelRow = RowFar
		}
	}
}

func segmentLabel(e datatypes.Entry) string {
	return fmt.Sprintf("%s = %s", e.FeatureName, strconv.FormatFloat(e.InputValue, 'f', -1, 64))
}

// =============================================================================
// Nice bounds
// =============================================================================

// niceBounds expands [lo, hi] outward to whole multiples of tick, then pads
// symmetrically until the span covers at least minTicks tick units. This
// guarantees finite, non-degenerate bounds even when lo == hi.
func niceBounds(lo, hi, tick float64, minTicks int) (float64, float64) {
	nlo := math.Floor(lo/tick) * tick
	nhi := math.Ceil(hi/tick) * tick
	for nhi-nlo < float64(minTicks)*tick-tick*1e-9 {
		nlo -= tick
		nhi += tick
	}
	return nlo, nhi
}

// deriveTick picks a power-of-ten tick unit from the data's magnitude range.
// A degenerate range (all contributions zero) falls back to the baseline
// magnitude, and finally to 1.
func deriveTick(lo, hi, baseline float64) float64 {
	span := hi - lo
	if span <= 0 {
		span = math.Abs(baseline)
	}
	if span <= 0 {
		return 1
	}
	// Aim for roughly 8 ticks across the tight range.
	return math.Pow(10, math.Floor(math.Log10(span/8)))
}
