// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/observability"
	"github.com/clinrisk/riskview/services/explainer/predictor"
	"github.com/clinrisk/riskview/services/explainer/scenario"
)

// ParsePatientPayload decodes a flat patient record: a JSON object of field
// name to number-or-null, or a single-element array wrapping one (the shape
// some EHR exports produce).
func ParsePatientPayload(r io.Reader) (map[string]*float64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading patient payload: %w", err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []map[string]*float64
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parsing patient array: %w", err)
		}
		if len(list) != 1 {
			return nil, fmt.Errorf("patient array must contain exactly one record, got %d", len(list))
		}
		return list[0], nil
	}
	var fields map[string]*float64
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("parsing patient record: %w", err)
	}
	return fields, nil
}

// intakeFields validates a raw patient payload against the catalog and
// produces the scenario's starting field set.
func intakeFields(cat *catalog.Catalog, raw map[string]*float64) (scenario.Fields, error) {
	fields, err := cat.Intake(raw)
	if err != nil {
		return nil, err
	}
	return scenario.Fields(fields), nil
}

// CreateAnalysis runs the initial analysis for a patient record and opens a
// scenario session around the result.
func CreateAnalysis(orch *analysis.Orchestrator, registry *Registry, provider catalog.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := ParsePatientPayload(c.Request.Body)
		if err != nil {
			slog.Warn("Rejected patient payload", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cat := provider.Current()
		fields, err := intakeFields(cat, raw)
		if err != nil {
			slog.Warn("Rejected patient fields", "error", err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		rec, err := orch.RunInitialAnalysis(c.Request.Context(), fields.Ptrs())
		observability.RecordAnalysis("initial", err)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, predictor.ErrUnreachable) {
				status = http.StatusServiceUnavailable
			}
			slog.Error("Initial analysis failed", "error", err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		store := scenario.NewStore(uuid.NewString(), cat.Policies())
		if err := store.SetAnalyzed(fields, rec); err != nil {
			slog.Error("Failed to open scenario", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open scenario"})
			return
		}
		registry.Add(store)

		slog.Info("Opened scenario", "scenario_id", store.ID(), "num_entries", len(rec.Entries))
		c.JSON(http.StatusCreated, gin.H{
			"scenario_id": store.ID(),
			"state":       store.State(),
			"record":      rec,
		})
	}
}
