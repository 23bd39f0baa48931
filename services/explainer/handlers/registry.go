// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"sync"

	"github.com/clinrisk/riskview/services/explainer/observability"
	"github.com/clinrisk/riskview/services/explainer/scenario"
)

// Registry tracks live scenario stores by id. Discarded scenarios are
// removed; their ids are never reused (ids are UUIDs).
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*scenario.Store
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*scenario.Store)}
}

// Add registers a store under its id.
func (r *Registry) Add(s *scenario.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.ID()] = s
	observability.ScenarioOpened()
}

// Get returns the store for id, or nil.
func (r *Registry) Get(id string) *scenario.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stores[id]
}

// Remove drops a store. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[id]; ok {
		delete(r.stores, id)
		observability.ScenarioClosed()
	}
}

// Len returns the number of live scenarios.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}
