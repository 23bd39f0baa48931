// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for clinical field edits.
//
// Every value a user types or steps into a scenario field passes through a
// FieldPolicy before it is allowed to touch scenario state. Rejected edits are
// not errors in the UI sense: the caller simply leaves the previous value in
// place. They are still returned as errors here so callers can decide (and
// tests can assert) why an edit was ignored.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrRejected is the sentinel wrapped by every edit rejection.
//
// Check with errors.Is:
//
//	if errors.Is(err, validation.ErrRejected) {
//	    // keep the previous value, no user-facing error
//	}
var ErrRejected = errors.New("edit rejected")

// FieldPolicy describes the numeric policy for one clinical input field.
//
// A policy is static per deployed model: it comes from the feature catalog and
// never changes during a session.
type FieldPolicy struct {
	// Name is the flat field name sent to the predictor (e.g. "systolic").
	Name string

	// IntegerOnly rejects fractional values (e.g. medication counts, age).
	IntegerOnly bool

	// NonNegative rejects values below zero and clamps decrements at zero.
	NonNegative bool

	// Max, when non-nil, rejects values above it.
	Max *float64

	// Min, when non-nil, records the lower edge of the clinical domain.
	// It is catalog metadata for rendering; edits below Min are not rejected
	// (only NonNegative rejects on the low side).
	Min *float64

	// Step is the increment/decrement granularity. Zero means the default:
	// 1 for integer-only fields, 0.1 otherwise.
	Step float64
}

// EffectiveStep returns the stepping granularity for this policy.
func (p FieldPolicy) EffectiveStep() float64 {
	if p.Step > 0 {
		return p.Step
	}
	if p.IntegerOnly {
		return 1
	}
	return 0.1
}

// FieldValue is a nullable numeric value. The zero value is "unset", which is
// distinct from the number zero: an unset field is sent to the predictor as
// JSON null and imputed upstream.
type FieldValue struct {
	value float64
	set   bool
}

// Unset returns the unset FieldValue.
func Unset() FieldValue { return FieldValue{} }

// Number returns a FieldValue holding v.
func Number(v float64) FieldValue { return FieldValue{value: v, set: true} }

// IsSet reports whether the value is present.
func (f FieldValue) IsSet() bool { return f.set }

// Float returns the numeric value and whether it is present.
func (f FieldValue) Float() (float64, bool) { return f.value, f.set }

// Ptr returns the value as a nullable pointer, the shape the predictor
// request uses.
func (f FieldValue) Ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

// String renders the value for display; unset renders as the empty string.
func (f FieldValue) String() string {
	if !f.set {
		return ""
	}
	return strconv.FormatFloat(f.value, 'f', -1, 64)
}

// ParseEdit validates a raw typed edit against the policy.
//
// Rules, in order:
//   - an empty (or all-whitespace) string is always accepted as unset
//   - a non-empty string that does not parse as a number is rejected
//   - non-finite numbers are rejected
//   - an integer-only field rejects fractional values
//   - a non-negative field rejects values below zero
//   - a field with a declared maximum rejects values above it
//
// On rejection the returned error wraps ErrRejected and the caller must leave
// the stored value unchanged.
func (p FieldPolicy) ParseEdit(raw string) (FieldValue, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unset(), nil
	}

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return Unset(), fmt.Errorf("%w: %q is not a number for field %s", ErrRejected, raw, p.Name)
	}
	return p.Check(v)
}

// Check validates an already-parsed numeric value against the policy.
func (p FieldPolicy) Check(v float64) (FieldValue, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unset(), fmt.Errorf("%w: non-finite value for field %s", ErrRejected, p.Name)
	}
	if p.IntegerOnly && v != math.Trunc(v) {
		return Unset(), fmt.Errorf("%w: field %s is integer-only, got %v", ErrRejected, p.Name, v)
	}
	if p.NonNegative && v < 0 {
		return Unset(), fmt.Errorf("%w: field %s cannot be negative, got %v", ErrRejected, p.Name, v)
	}
	if p.Max != nil && v > *p.Max {
		return Unset(), fmt.Errorf("%w: field %s exceeds maximum %v, got %v", ErrRejected, p.Name, *p.Max, v)
	}
	return Number(v), nil
}

// Increment steps the value up by the policy step. An unset value steps from
// zero. The result is clamped to the declared maximum when one exists.
func (p FieldPolicy) Increment(cur FieldValue) FieldValue {
	v, _ := cur.Float() // unset yields 0
	v += p.EffectiveStep()
	if p.Max != nil && v > *p.Max {
		v = *p.Max
	}
	return Number(v)
}

// Decrement steps the value down by the policy step. An unset value steps
// from zero. A non-negative field clamps at zero instead of going below it.
func (p FieldPolicy) Decrement(cur FieldValue) FieldValue {
	v, _ := cur.Float()
	v -= p.EffectiveStep()
	if p.NonNegative && v < 0 {
		v = 0
	}
	return Number(v)
}

// CanDecrement reports whether the decrement control should be enabled.
// A non-negative field at (or below) zero cannot be decremented further;
// the UI must disable the control, not just ignore clicks.
func (p FieldPolicy) CanDecrement(cur FieldValue) bool {
	if !p.NonNegative {
		return true
	}
	v, ok := cur.Float()
	if !ok {
		// Unset steps from zero, so there is nothing below to reach.
		return false
	}
	return v > 0
}
