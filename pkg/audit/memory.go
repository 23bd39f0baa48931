// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"sync"
	"time"
)

const defaultCapacity = 4096

// MemoryLogger keeps the most recent events in a bounded in-process buffer.
// Suits single-user deployments and tests; the trail does not survive a
// restart.
type MemoryLogger struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// NewMemoryLogger creates a logger retaining at most capacity events.
// Non-positive capacity uses the default.
func NewMemoryLogger(capacity int) *MemoryLogger {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryLogger{capacity: capacity}
}

// Log appends the event, evicting the oldest once the buffer is full.
func (l *MemoryLogger) Log(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	return nil
}

// Query returns matching events, newest first.
func (l *MemoryLogger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Event{}
	for i := len(l.events) - 1; i >= 0; i-- {
		if !filter.Matches(l.events[i]) {
			continue
		}
		out = append(out, l.events[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Flush is a no-op; events are already in memory.
func (l *MemoryLogger) Flush(ctx context.Context) error { return nil }

var _ Logger = (*MemoryLogger)(nil)
