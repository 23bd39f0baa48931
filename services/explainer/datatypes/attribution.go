// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides type definitions for the riskview explainer.
//
// This file contains the attribution model: the validated, normalized form of
// a prediction-with-explanation returned by the external risk predictor, and
// the adapter that builds it from either of the two wire shapes deployed
// predictors use.
package datatypes

import (
	"errors"
	"fmt"
	"math"
)

// SumTolerance is the floating tolerance within which a record's predicted
// value must equal baseline + sum of contributions.
const SumTolerance = 1e-6

// ErrMalformedResponse is the sentinel wrapped by every adapter failure:
// disagreeing array lengths, a non-finite contribution, a missing baseline,
// or a duplicated feature name.
var ErrMalformedResponse = errors.New("malformed predictor response")

// =============================================================================
// Feature catalog types
// =============================================================================

// FeatureCategory groups catalog features for display.
type FeatureCategory string

const (
	CategoryDemographics FeatureCategory = "demographics"
	CategoryVitals       FeatureCategory = "vitals"
	CategoryLabs         FeatureCategory = "labs"
	CategoryMedications  FeatureCategory = "medications"
)

// Feature is the static, per-deployment description of one model input.
//
// Features are immutable for the lifetime of a session: they come from the
// feature catalog file and define both the edit policy (domain, step,
// integrality) and the display label used in layouts and exports.
type Feature struct {
	// Name is the flat field name in the predictor request (e.g. "systolic").
	Name string `json:"name" yaml:"name" validate:"required"`

	// Label is the human-readable display name (e.g. "Systolic BP").
	Label string `json:"label" yaml:"label" validate:"required"`

	// Min and Max bound the clinical domain [min, max]. Zero Max means
	// unbounded above, so a declared-vs-min conflict is checked by the
	// catalog loader rather than a struct tag.
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`

	// Step is the increment/decrement granularity. Zero means the edit
	// policy default (1 for integer-only features, 0.1 for decimal ones).
	Step float64 `json:"step" yaml:"step" validate:"gte=0"`

	// IntegerOnly rejects fractional edits.
	IntegerOnly bool `json:"integer_only" yaml:"integer_only"`

	// NonNegative rejects negative edits and clamps decrements at zero.
	NonNegative bool `json:"non_negative" yaml:"non_negative"`

	// Category groups the feature in the intake form.
	Category FeatureCategory `json:"category" yaml:"category" validate:"required,oneof=demographics vitals labs medications"`

	// Default, when non-nil, pre-fills the intake form (medication doses
	// default to 0 rather than unset).
	Default *float64 `json:"default,omitempty" yaml:"default,omitempty"`
}

// =============================================================================
// AttributionRecord
// =============================================================================

// Entry is one feature's contribution within an attribution record.
type Entry struct {
	// FeatureName is the flat field name, unique within the record.
	FeatureName string `json:"feature_name"`

	// InputValue is the feature value the prediction was computed from
	// (post-imputation; a null wire value is normalized to 0).
	InputValue float64 `json:"input_value"`

	// Contribution is the signed amount this feature shifts the prediction
	// away from the baseline. Always finite.
	Contribution float64 `json:"contribution"`
}

// AttributionRecord is the immutable result of one predictor call.
//
// Invariants:
//   - entry feature names are unique
//   - every contribution is finite
//   - PredictedValue == Baseline + sum of contributions within SumTolerance
//
// Entry order is the insertion order from the predictor response. Layout
// re-sorts by |contribution| for display; that is a presentation concern and
// not an invariant here.
//
// Treat records as values: the store hands out deep copies via Clone, and
// nothing in this package mutates a record after construction.
type AttributionRecord struct {
	// Baseline is the model's reference output absent feature information.
	Baseline float64 `json:"baseline"`

	// Entries lists per-feature contributions in response order.
	Entries []Entry `json:"entries"`

	// PredictedValue is Baseline plus the sum of contributions.
	PredictedValue float64 `json:"predicted_value"`

	// Probability is the predictor's risk probability in [0, 1], when the
	// deployment reports one. Zero when absent.
	Probability float64 `json:"probability,omitempty"`

	// PredictedClass is the predictor's thresholded binary decision, when
	// the deployment reports one.
	PredictedClass int `json:"predicted_class,omitempty"`
}

// ContributionSum returns the sum of all entry contributions.
func (r *AttributionRecord) ContributionSum() float64 {
	var sum float64
	for _, e := range r.Entries {
		sum += e.Contribution
	}
	return sum
}

// Validate checks the record invariants.
func (r *AttributionRecord) Validate() error {
	seen := make(map[string]bool, len(r.Entries))
	for i, e := range r.Entries {
		if e.FeatureName == "" {
			return fmt.Errorf("%w: entry %d has empty feature name", ErrMalformedResponse, i)
		}
		if seen[e.FeatureName] {
			return fmt.Errorf("%w: duplicate feature %q", ErrMalformedResponse, e.FeatureName)
		}
		seen[e.FeatureName] = true
		if !isFinite(e.Contribution) {
			return fmt.Errorf("%w: non-finite contribution for %q", ErrMalformedResponse, e.FeatureName)
		}
	}
	if !isFinite(r.Baseline) {
		return fmt.Errorf("%w: non-finite baseline", ErrMalformedResponse)
	}
	if diff := math.Abs(r.Baseline + r.ContributionSum() - r.PredictedValue); diff > SumTolerance {
		return fmt.Errorf("%w: predicted value %v differs from baseline+contributions by %v",
			ErrMalformedResponse, r.PredictedValue, diff)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *AttributionRecord) Clone() *AttributionRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Entries = make([]Entry, len(r.Entries))
	copy(cp.Entries, r.Entries)
	return &cp
}

// =============================================================================
// Predictor wire shapes and adapter
// =============================================================================

// FeatureEffect is one feature in the object-of-maps response shape.
type FeatureEffect struct {
	Effect float64  `json:"effect"`
	Value  *float64 `json:"value"`
}

// PredictorResponse is the union of the wire shapes deployed predictors
// return from POST /predict.
//
// Two shapes are in production for the same product:
//
//	parallel arrays:  { prediction, base_value, shap_values[],
//	                    feature_names[], feature_values[] }
//	object-of-maps:   { prediction, baseValue, featureNames[],
//	                    features: { name: {effect, value} } }
//
// Field renames between deployments are absorbed here and nowhere else.
type PredictorResponse struct {
	Prediction       *float64                 `json:"prediction"`
	BaseValue        *float64                 `json:"base_value"`
	BaseValueCamel   *float64                 `json:"baseValue"`
	ShapValues       []float64                `json:"shap_values"`
	FeatureNames     []string                 `json:"feature_names"`
	FeatureNamesAlt  []string                 `json:"featureNames"`
	FeatureValues    []*float64               `json:"feature_values"`
	Features         map[string]FeatureEffect `json:"features"`
	RiskScore        *float64                 `json:"risk_score"`
	ProbabilityScore *float64                 `json:"probability_score"`
}

func (p *PredictorResponse) baseline() (float64, bool) {
	if p.BaseValue != nil {
		return *p.BaseValue, true
	}
	if p.BaseValueCamel != nil {
		return *p.BaseValueCamel, true
	}
	return 0, false
}

func (p *PredictorResponse) featureNames() []string {
	if len(p.FeatureNames) > 0 {
		return p.FeatureNames
	}
	return p.FeatureNamesAlt
}

func (p *PredictorResponse) probability() float64 {
	if p.ProbabilityScore != nil {
		return *p.ProbabilityScore
	}
	if p.RiskScore != nil {
		return *p.RiskScore
	}
	return 0
}

// NewAttributionRecord validates and normalizes a raw predictor response.
//
// It accepts both wire shapes (parallel arrays take precedence when both are
// present), preserves response order, and derives the predicted value as
// baseline + sum of contributions. It fails with an error wrapping
// ErrMalformedResponse when array lengths disagree, a contribution is
// non-finite, or the baseline is missing. No other side effects.
func NewAttributionRecord(resp *PredictorResponse) (*AttributionRecord, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	base, ok := resp.baseline()
	if !ok {
		return nil, fmt.Errorf("%w: missing baseline", ErrMalformedResponse)
	}

	var entries []Entry
	switch {
	case len(resp.ShapValues) > 0:
		names := resp.featureNames()
		if len(names) != len(resp.ShapValues) {
			return nil, fmt.Errorf("%w: %d feature names but %d shap values",
				ErrMalformedResponse, len(names), len(resp.ShapValues))
		}
		if resp.FeatureValues != nil && len(resp.FeatureValues) != len(names) {
			return nil, fmt.Errorf("%w: %d feature names but %d feature values",
				ErrMalformedResponse, len(names), len(resp.FeatureValues))
		}
		entries = make([]Entry, len(names))
		for i, name := range names {
			var value float64
			if resp.FeatureValues != nil && resp.FeatureValues[i] != nil {
				value = *resp.FeatureValues[i]
			}
			entries[i] = Entry{FeatureName: name, InputValue: value, Contribution: resp.ShapValues[i]}
		}

	case len(resp.Features) > 0:
		// JSON objects carry no order; the deployment that uses this shape
		// always sends featureNames alongside as the canonical ordering.
		names := resp.featureNames()
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: object-shaped response without feature name order", ErrMalformedResponse)
		}
		entries = make([]Entry, 0, len(names))
		for _, name := range names {
			fe, ok := resp.Features[name]
			if !ok {
				return nil, fmt.Errorf("%w: feature %q named but absent from features map",
					ErrMalformedResponse, name)
			}
			var value float64
			if fe.Value != nil {
				value = *fe.Value
			}
			entries = append(entries, Entry{FeatureName: name, InputValue: value, Contribution: fe.Effect})
		}

	default:
		return nil, fmt.Errorf("%w: no attribution values present", ErrMalformedResponse)
	}

	rec := &AttributionRecord{
		Baseline:    base,
		Entries:     entries,
		Probability: resp.probability(),
	}
	rec.PredictedValue = rec.Baseline + rec.ContributionSum()
	if resp.Prediction != nil {
		rec.PredictedClass = int(*resp.Prediction)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
