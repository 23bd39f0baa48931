// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package export

import (
	"fmt"
	"html/template"
	"strconv"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
)

// Plot colors match the interactive view.
const (
	colorNegative = "#ff3b6a"
	colorPositive = "#2f80ff"
	colorAxis     = "#8a8a8a"
)

// Pixel geometry of the exported SVG.
const (
	svgWidth   = 900.0
	svgHeight  = 260.0
	plotLeft   = 40.0
	plotRight  = 860.0
	barTop     = 90.0
	barBottom  = 130.0
	axisY      = 170.0
	labelNearY = 200.0
	labelFarY  = 222.0
)

type svgRect struct {
	X, Y, W, H float64
	Fill       string
}

type svgText struct {
	X, Y   float64
	Fill   string
	Anchor string
	Text   string
}

type svgLine struct {
	X1, Y1, X2, Y2 float64
	Stroke         string
	Dash           string
}

type page struct {
	Baseline  string
	Predicted string
	Rects     []svgRect
	Texts     []svgText
	Lines     []svgLine
	Width     float64
	Height    float64
}

// toPx maps a data-space x coordinate into the SVG plot area.
func toPx(axis forceplot.Axis, x float64) float64 {
	span := axis.Max - axis.Min
	if span <= 0 {
		return plotLeft
	}
	return plotLeft + (x-axis.Min)/span*(plotRight-plotLeft)
}

func fmtVal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func buildPage(rec *datatypes.AttributionRecord, layout forceplot.Layout) page {
	p := page{
		Baseline:  fmtVal(rec.Baseline),
		Predicted: fmtVal(rec.PredictedValue),
		Width:     svgWidth,
		Height:    svgHeight,
	}

	for _, seg := range layout.Segments {
		fill := colorPositive
		if seg.Polarity == forceplot.Negative {
			fill = colorNegative
		}
		x0 := toPx(layout.Axis, seg.X0)
		x1 := toPx(layout.Axis, seg.X1)
		p.Rects = append(p.Rects, svgRect{
			X: x0, Y: barTop, W: x1 - x0, H: barBottom - barTop, Fill: fill,
		})

		y := labelNearY
		if seg.LabelRow == forceplot.RowFar {
			y = labelFarY
		}
		p.Texts = append(p.Texts, svgText{
			X: toPx(layout.Axis, seg.AnchorX), Y: y, Fill: fill,
			Anchor: "middle", Text: seg.Label,
		})
	}

	// Baseline and predicted markers.
	baseX := toPx(layout.Axis, layout.Baseline.X)
	predX := toPx(layout.Axis, layout.Predicted.X)
	p.Lines = append(p.Lines,
		svgLine{X1: baseX, Y1: barTop - 30, X2: baseX, Y2: barBottom + 10, Stroke: colorAxis, Dash: "4 3"},
		svgLine{X1: predX, Y1: barTop - 30, X2: predX, Y2: barBottom + 10, Stroke: "#000000", Dash: "2 2"},
		svgLine{X1: plotLeft, Y1: axisY, X2: plotRight, Y2: axisY, Stroke: colorAxis},
	)
	p.Texts = append(p.Texts,
		svgText{X: baseX, Y: barTop - 38, Fill: colorAxis, Anchor: "middle", Text: "baseline " + p.Baseline},
		svgText{X: predX, Y: barTop - 52, Fill: "#000000", Anchor: "middle", Text: "predicted " + p.Predicted},
	)

	// Axis ticks.
	for _, tick := range layout.Axis.Ticks() {
		x := toPx(layout.Axis, tick)
		p.Lines = append(p.Lines, svgLine{X1: x, Y1: axisY, X2: x, Y2: axisY + 6, Stroke: colorAxis})
		p.Texts = append(p.Texts, svgText{
			X: x, Y: axisY + 20, Fill: colorAxis, Anchor: "middle", Text: fmtVal(tick),
		})
	}
	return p
}

var svgFuncs = template.FuncMap{
	"px": func(v float64) template.HTML {
		return template.HTML(fmt.Sprintf("%.1f", v))
	},
}

var pageTemplate = template.Must(template.New("forceplot").Funcs(svgFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Risk attribution</title>
<style>
  body { font-family: sans-serif; margin: 2rem; }
  .summary { color: #444; margin-bottom: 1rem; }
  text { font-size: 11px; }
</style>
</head>
<body>
<h1>Risk attribution</h1>
<p class="summary">Baseline {{.Baseline}} &rarr; predicted {{.Predicted}}</p>
<svg width="{{px .Width}}" height="{{px .Height}}" viewBox="0 0 {{px .Width}} {{px .Height}}" xmlns="http://www.w3.org/2000/svg">
{{- range .Rects}}
  <rect x="{{px .X}}" y="{{px .Y}}" width="{{px .W}}" height="{{px .H}}" fill="{{.Fill}}" stroke="white" stroke-width="1"/>
{{- end}}
{{- range .Lines}}
  <line x1="{{px .X1}}" y1="{{px .Y1}}" x2="{{px .X2}}" y2="{{px .Y2}}" stroke="{{.Stroke}}"{{if .Dash}} stroke-dasharray="{{.Dash}}"{{end}}/>
{{- end}}
{{- range .Texts}}
  <text x="{{px .X}}" y="{{px .Y}}" fill="{{.Fill}}" text-anchor="{{.Anchor}}">{{.Text}}</text>
{{- end}}
</svg>
</body>
</html>
`))
