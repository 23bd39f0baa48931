// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scenario holds the what-if state machine for one analyzed patient
// record: the immutable original attribution, the user's editable field copy,
// the last recompute result, and an optional pinned comparison snapshot.
package scenario

import (
	"errors"
	"fmt"
	"sync"

	"github.com/clinrisk/riskview/pkg/validation"
	"github.com/clinrisk/riskview/services/explainer/datatypes"
)

// =============================================================================
// States and errors
// =============================================================================

// State is the lifecycle state of a scenario.
type State string

const (
	// StateIdle means no analysis has run yet.
	StateIdle State = "idle"
	// StateAnalyzed means the original record exists and fields are clean.
	StateAnalyzed State = "analyzed"
	// StateEditing means at least one field changed since the last recompute.
	StateEditing State = "editing"
	// StateRecomputing means a predictor request is in flight.
	StateRecomputing State = "recomputing"
	// StateError means the last recompute failed; fields stay editable and
	// the previous updated record is retained.
	StateError State = "error"
	// StateDiscarded is terminal: the user backed out to the input form.
	StateDiscarded State = "discarded"
)

var (
	// ErrConcurrentRecompute rejects a recompute while one is in flight.
	// The caller should tell the user to wait, not queue the request.
	ErrConcurrentRecompute = errors.New("recompute already in flight, please wait")

	// ErrNotAnalyzed rejects operations that need an original record.
	ErrNotAnalyzed = errors.New("scenario has no analysis yet")

	// ErrDiscarded rejects operations on a discarded scenario.
	ErrDiscarded = errors.New("scenario was discarded")

	// ErrUnknownField rejects edits to fields absent from the catalog.
	ErrUnknownField = errors.New("unknown field")

	// ErrStaleResponse marks a recompute completion that arrived after the
	// scenario moved on (discard). The response is ignored, not applied.
	ErrStaleResponse = errors.New("stale recompute response ignored")
)

// =============================================================================
// Fields
// =============================================================================

// Fields is a flat patient record: feature name to nullable value.
type Fields map[string]validation.FieldValue

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	cp := make(Fields, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return cp
}

// Ptrs converts to the nullable-pointer map the predictor request uses.
func (f Fields) Ptrs() map[string]*float64 {
	out := make(map[string]*float64, len(f))
	for k, v := range f {
		out[k] = v.Ptr()
	}
	return out
}

// Snapshot is a user-pinned comparison point: the fields that produced a
// record, together with that record.
type Snapshot struct {
	Fields Fields
	Record *datatypes.AttributionRecord
}

// =============================================================================
// Store
// =============================================================================

// Store is the scenario state machine for one UI session.
//
// A single session owns the store, but the HTTP surface may deliver edits and
// recompute completions on different goroutines, so all state is guarded by
// one mutex. The recompute guard is a state check, not a queue: a second
// request while one is pending is rejected with ErrConcurrentRecompute.
type Store struct {
	mu sync.Mutex

	id       string
	policies map[string]validation.FieldPolicy

	state      State
	generation uint64

	original       *datatypes.AttributionRecord
	originalFields Fields

	editable Fields
	// dirty marks edits made after the current/last recompute started.
	dirty bool

	updated *datatypes.AttributionRecord
	// updatedFields are the fields the updated record was computed from.
	updatedFields Fields
	// pendingFields are the fields of the in-flight recompute. They only
	// become updatedFields when the recompute succeeds, so a failure never
	// pairs its fields with the retained previous record.
	pendingFields Fields

	saved *Snapshot

	lastErr string
}

// NewStore creates an Idle store with the deployment's field policies.
func NewStore(id string, policies []validation.FieldPolicy) *Store {
	byName := make(map[string]validation.FieldPolicy, len(policies))
	for _, p := range policies {
		byName[p.Name] = p
	}
	return &Store{
		id:       id,
		policies: byName,
		state:    StateIdle,
	}
}

// ID returns the scenario identifier.
func (s *Store) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetAnalyzed installs the initial analysis result, moving Idle → Analyzed.
// The editable fields initialize as a copy of the fields that produced the
// original record.
func (s *Store) SetAnalyzed(fields Fields, rec *datatypes.AttributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDiscarded {
		return ErrDiscarded
	}
	if s.state != StateIdle {
		return fmt.Errorf("cannot install initial analysis in state %s", s.state)
	}
	s.original = rec.Clone()
	s.originalFields = fields.Clone()
	s.editable = fields.Clone()
	s.state = StateAnalyzed
	return nil
}

// =============================================================================
// Edits
// =============================================================================

// EditField applies a typed edit to one field. Rejected edits (unknown field
// or policy violation) leave state untouched and return an error the caller
// resolves locally, per clinical-entry ergonomics. Edits are allowed while a
// recompute is in flight; they simply mark the scenario dirty.
func (s *Store) EditField(name, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableNow(); err != nil {
		return err
	}
	policy, ok := s.policies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	v, err := policy.ParseEdit(raw)
	if err != nil {
		return err
	}
	s.applyEdit(name, v)
	return nil
}

// IncrementField steps a field up by its declared step.
func (s *Store) IncrementField(name string) error {
	return s.step(name, func(p validation.FieldPolicy, cur validation.FieldValue) (validation.FieldValue, bool) {
		return p.Increment(cur), true
	})
}

// DecrementField steps a field down by its declared step, clamping a
// non-negative field at zero. At or below zero the control is disabled and
// the step is rejected.
func (s *Store) DecrementField(name string) error {
	return s.step(name, func(p validation.FieldPolicy, cur validation.FieldValue) (validation.FieldValue, bool) {
		if !p.CanDecrement(cur) {
			return cur, false
		}
		return p.Decrement(cur), true
	})
}

func (s *Store) step(name string, fn func(validation.FieldPolicy, validation.FieldValue) (validation.FieldValue, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableNow(); err != nil {
		return err
	}
	policy, ok := s.policies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	next, applied := fn(policy, s.editable[name])
	if !applied {
		return fmt.Errorf("%w: field %s cannot step further", validation.ErrRejected, name)
	}
	s.applyEdit(name, next)
	return nil
}

func (s *Store) editableNow() error {
	switch s.state {
	case StateIdle:
		return ErrNotAnalyzed
	case StateDiscarded:
		return ErrDiscarded
	}
	return nil
}

func (s *Store) applyEdit(name string, v validation.FieldValue) {
	s.editable[name] = v
	s.dirty = true
	if s.state == StateAnalyzed || s.state == StateError {
		s.state = StateEditing
	}
}

// =============================================================================
// Recompute cycle
// =============================================================================

// BeginRecompute transitions into Recomputing and returns the generation
// token plus a copy of the fields to send to the predictor.
//
// Allowed from Analyzed, Editing, and Error (a failed recompute may be
// re-triggered without a new edit). A request while one is already in flight
// returns ErrConcurrentRecompute.
func (s *Store) BeginRecompute() (uint64, Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return 0, nil, ErrNotAnalyzed
	case StateDiscarded:
		return 0, nil, ErrDiscarded
	case StateRecomputing:
		return 0, nil, ErrConcurrentRecompute
	}

	s.generation++
	s.state = StateRecomputing
	s.dirty = false
	fields := s.editable.Clone()
	s.pendingFields = fields
	return s.generation, fields, nil
}

// CompleteRecompute installs a successful recompute result. A result whose
// generation no longer matches (the scenario was discarded in the meantime)
// is dropped with ErrStaleResponse and changes nothing.
func (s *Store) CompleteRecompute(gen uint64, rec *datatypes.AttributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDiscarded || gen != s.generation || s.state != StateRecomputing {
		return ErrStaleResponse
	}
	s.updated = rec.Clone()
	s.updatedFields = s.pendingFields
	s.pendingFields = nil
	s.lastErr = ""
	if s.dirty {
		s.state = StateEditing
	} else {
		s.state = StateAnalyzed
	}
	return nil
}

// FailRecompute records a predictor failure. The previous updated record (if
// any) is retained and fields stay editable; state moves to Error. Stale
// failures are dropped like stale completions.
func (s *Store) FailRecompute(gen uint64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDiscarded || gen != s.generation || s.state != StateRecomputing {
		return ErrStaleResponse
	}
	if cause != nil {
		s.lastErr = cause.Error()
	}
	s.pendingFields = nil
	s.state = StateError
	return nil
}

// =============================================================================
// Snapshot, discard, accessors
// =============================================================================

// SaveSnapshot pins the current comparison point: the last recompute result
// when one exists, otherwise the original analysis. The pin persists across
// further edits until replaced or the scenario is discarded.
func (s *Store) SaveSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return ErrNotAnalyzed
	case StateDiscarded:
		return ErrDiscarded
	}
	if s.updated != nil {
		s.saved = &Snapshot{Fields: s.updatedFields.Clone(), Record: s.updated.Clone()}
	} else {
		s.saved = &Snapshot{Fields: s.originalFields.Clone(), Record: s.original.Clone()}
	}
	return nil
}

// Discard terminates the scenario and releases its state. Any in-flight
// recompute response becomes stale and will be ignored.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateDiscarded
	s.generation++
	s.original = nil
	s.originalFields = nil
	s.editable = nil
	s.updated = nil
	s.updatedFields = nil
	s.pendingFields = nil
	s.saved = nil
}

// Original returns a copy of the original record, or nil before analysis.
func (s *Store) Original() *datatypes.AttributionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original.Clone()
}

// Updated returns a copy of the last recompute result, or nil.
func (s *Store) Updated() *datatypes.AttributionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated.Clone()
}

// Saved returns a copy of the pinned snapshot, or nil.
func (s *Store) Saved() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return nil
	}
	return &Snapshot{Fields: s.saved.Fields.Clone(), Record: s.saved.Record.Clone()}
}

// EditableFields returns a copy of the current editable fields.
func (s *Store) EditableFields() Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editable.Clone()
}

// OriginalFields returns a copy of the fields that produced the original.
func (s *Store) OriginalFields() Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originalFields.Clone()
}

// LastError returns the human-readable message from the last failed
// recompute, empty when the last recompute succeeded.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
