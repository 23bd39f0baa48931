// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog defines the deployment's feature set: which fields the
// intake form shows, their display labels, grouping, and edit constraints.
// A deployment ships a YAML catalog; the embedded default covers the
// cardiovascular-risk model the service was built around.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/clinrisk/riskview/pkg/validation"
	"github.com/clinrisk/riskview/services/explainer/datatypes"
)

// =============================================================================
// Catalog
// =============================================================================

// Catalog is an ordered feature list. Order here is presentation order on
// the intake form, not attribution order; attribution order always follows
// the predictor response.
type Catalog struct {
	Version  int                 `yaml:"version" json:"version" validate:"gte=1"`
	Features []datatypes.Feature `yaml:"features" json:"features" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Load reads and validates a YAML catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if err := cat.check(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	slog.Info("Loaded feature catalog", "path", path, "num_features", len(cat.Features))
	return &cat, nil
}

func (c *Catalog) check() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Features))
	for _, f := range c.Features {
		if seen[f.Name] {
			return fmt.Errorf("duplicate feature %q", f.Name)
		}
		seen[f.Name] = true
		if f.Max != 0 && f.Max < f.Min {
			return fmt.Errorf("feature %q: max %v below min %v", f.Name, f.Max, f.Min)
		}
	}
	return nil
}

// Lookup returns the feature with the given name.
func (c *Catalog) Lookup(name string) (datatypes.Feature, bool) {
	for _, f := range c.Features {
		if f.Name == name {
			return f, true
		}
	}
	return datatypes.Feature{}, false
}

// Policies converts the catalog into the edit policies the scenario store
// enforces.
func (c *Catalog) Policies() []validation.FieldPolicy {
	out := make([]validation.FieldPolicy, 0, len(c.Features))
	for _, f := range c.Features {
		p := validation.FieldPolicy{
			Name:        f.Name,
			IntegerOnly: f.IntegerOnly,
			NonNegative: f.NonNegative,
			Step:        f.Step,
		}
		if f.Max != 0 {
			max := f.Max
			p.Max = &max
		}
		if f.Min != 0 {
			min := f.Min
			p.Min = &min
		}
		out = append(out, p)
	}
	return out
}

// DefaultFields returns the intake form's starting values: catalog defaults
// where declared, unset otherwise.
func (c *Catalog) DefaultFields() map[string]validation.FieldValue {
	out := make(map[string]validation.FieldValue, len(c.Features))
	for _, f := range c.Features {
		if f.Default != nil {
			out[f.Name] = validation.Number(*f.Default)
		} else {
			out[f.Name] = validation.Unset()
		}
	}
	return out
}

// Intake validates a raw patient payload against the catalog and produces
// the starting field set: catalog defaults, overlaid with the payload's
// values after policy checks. Unknown fields are rejected; explicit nulls
// mark a field unset.
func (c *Catalog) Intake(raw map[string]*float64) (map[string]validation.FieldValue, error) {
	fields := c.DefaultFields()
	policies := make(map[string]validation.FieldPolicy)
	for _, p := range c.Policies() {
		policies[p.Name] = p
	}
	for name, val := range raw {
		policy, ok := policies[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if val == nil {
			fields[name] = validation.Unset()
			continue
		}
		v, err := policy.Check(*val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = v
	}
	return fields, nil
}

// Provider yields the active catalog. Implemented by Watcher for hot-reload
// deployments and by Static for fixed ones.
type Provider interface {
	Current() *Catalog
}

// Static is a Provider that always returns the same catalog.
type Static struct {
	Catalog *Catalog
}

// Current implements Provider.
func (s Static) Current() *Catalog { return s.Catalog }

// =============================================================================
// Hot reload
// =============================================================================

// Watcher reloads the catalog when its file changes on disk. Swap is atomic:
// readers always see either the old or the new catalog, never a partial one.
type Watcher struct {
	mu      sync.RWMutex
	current *Catalog
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads the catalog at path and watches it for rewrites. A broken
// rewrite keeps the last good catalog and logs the failure.
func NewWatcher(path string) (*Watcher, error) {
	cat, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating catalog watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching catalog %s: %w", path, err)
	}
	w := &Watcher{current: cat, watcher: fw, done: make(chan struct{})}
	go w.loop(path)
	return w, nil
}

func (w *Watcher) loop(path string) {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cat, err := Load(path)
			if err != nil {
				slog.Error("Catalog reload failed, keeping previous", "path", path, "error", err)
				continue
			}
			w.mu.Lock()
			w.current = cat
			w.mu.Unlock()
			slog.Info("Catalog reloaded", "path", path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Catalog watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Current returns the active catalog.
func (w *Watcher) Current() *Catalog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
