// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit records access to patient analyses for compliance trails.
//
// Clinical deployments are typically subject to access-audit requirements
// (HIPAA and friends): who opened an analysis, who exported a report, when.
// The service core only depends on the Logger interface; a single-user
// deployment runs the in-memory logger, and site integrations can forward
// events to their SIEM by providing their own implementation.
//
// Events never carry patient field values, only resource identifiers.
package audit

import (
	"context"
	"time"
)

// Event is one recorded access.
type Event struct {
	// EventType categorizes the event, "category.action" style:
	// "analysis.create", "scenario.edit", "scenario.export",
	// "scenario.discard", "draft.write", "draft.read", "draft.delete".
	EventType string `json:"event_type"`

	// Timestamp is when the event occurred, UTC. Implementations set it
	// when zero.
	Timestamp time.Time `json:"timestamp"`

	// Actor identifies who performed the action. Deployments without
	// authentication record "anonymous".
	Actor string `json:"actor"`

	// ResourceType is "scenario" or "draft".
	ResourceType string `json:"resource_type"`

	// ResourceID is the scenario or draft identifier, when the request
	// names one.
	ResourceID string `json:"resource_id,omitempty"`

	// Outcome is "success", "rejected", or "error".
	Outcome string `json:"outcome"`

	// Metadata holds event-specific detail: HTTP status, export format,
	// edited field name. Field names are fine here; field values are not.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Filter selects events in a Query. Zero fields are ignored; set fields
// combine with AND.
type Filter struct {
	EventTypes   []string
	Actor        string
	ResourceType string
	ResourceID   string
	Outcome      string

	// StartTime inclusive, EndTime exclusive.
	StartTime time.Time
	EndTime   time.Time

	// Limit caps the result count. Zero means no cap.
	Limit int
}

// Matches reports whether the event satisfies every set criterion.
func (f Filter) Matches(e Event) bool {
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if t == e.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Actor != "" && f.Actor != e.Actor {
		return false
	}
	if f.ResourceType != "" && f.ResourceType != e.ResourceType {
		return false
	}
	if f.ResourceID != "" && f.ResourceID != e.ResourceID {
		return false
	}
	if f.Outcome != "" && f.Outcome != e.Outcome {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && !e.Timestamp.Before(f.EndTime) {
		return false
	}
	return true
}

// Logger records access events. Implementations must be safe for concurrent
// use, and Log must return quickly so request handling never stalls on the
// audit trail.
type Logger interface {
	// Log records one event, setting Timestamp when zero.
	Log(ctx context.Context, event Event) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Flush persists any buffered events. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopLogger discards all events. The default for deployments that opt out
// of audit trails.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event Event) error { return nil }

func (NopLogger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return []Event{}, nil
}

func (NopLogger) Flush(ctx context.Context) error { return nil }

var _ Logger = NopLogger{}
