// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinrisk/riskview/pkg/validation"
	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/clinrisk/riskview/services/explainer/export"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
	"github.com/clinrisk/riskview/services/explainer/observability"
	"github.com/clinrisk/riskview/services/explainer/scenario"
)

// editRequest is one field mutation. Op defaults to "set"; "increment" and
// "decrement" ignore Value.
type editRequest struct {
	Field string `json:"field" binding:"required"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

func scenarioOr404(c *gin.Context, registry *Registry) *scenario.Store {
	store := registry.Get(c.Param("scenarioId"))
	if store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown scenario"})
		return nil
	}
	return store
}

// scenarioView is the full session state returned by GetScenario.
func scenarioView(store *scenario.Store) gin.H {
	view := gin.H{
		"scenario_id": store.ID(),
		"state":       store.State(),
		"fields":      store.EditableFields().Ptrs(),
		"original":    store.Original(),
	}
	if rec := store.Updated(); rec != nil {
		view["updated"] = rec
	}
	if snap := store.Saved(); snap != nil {
		view["saved"] = gin.H{"fields": snap.Fields.Ptrs(), "record": snap.Record}
	}
	if msg := store.LastError(); msg != "" {
		view["last_error"] = msg
	}
	return view
}

// GetScenario returns the session state: fields, records, snapshot.
func GetScenario(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := scenarioOr404(c, registry)
		if store == nil {
			return
		}
		c.JSON(http.StatusOK, scenarioView(store))
	}
}

// EditScenarioField applies one typed or stepped edit. Policy rejections are
// 422 with a message the client shows beside the field.
func EditScenarioField(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := scenarioOr404(c, registry)
		if store == nil {
			return
		}
		var req editRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var err error
		switch req.Op {
		case "", "set":
			err = store.EditField(req.Field, req.Value)
		case "increment":
			err = store.IncrementField(req.Field)
		case "decrement":
			err = store.DecrementField(req.Field)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "op must be set, increment, or decrement"})
			return
		}

		switch {
		case err == nil:
		case errors.Is(err, scenario.ErrUnknownField):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case errors.Is(err, validation.ErrRejected):
			observability.RecordEditRejection(req.Field)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		case errors.Is(err, scenario.ErrDiscarded), errors.Is(err, scenario.ErrNotAnalyzed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"state":  store.State(),
			"fields": store.EditableFields().Ptrs(),
		})
	}
}

// RecomputeScenario runs a what-if prediction over the current fields. The
// round trip is synchronous but the store transition is what guards the
// session: a second request while one is pending gets 409.
func RecomputeScenario(orch *analysis.Orchestrator, registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := scenarioOr404(c, registry)
		if store == nil {
			return
		}
		gen, fields, err := store.BeginRecompute()
		switch {
		case errors.Is(err, scenario.ErrConcurrentRecompute):
			observability.RecordConcurrentRecomputeRejection()
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, scenario.ErrNotAnalyzed), errors.Is(err, scenario.ErrDiscarded):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		rec, err := orch.RunScenarioAnalysis(c.Request.Context(), fields.Ptrs())
		observability.ObservePredictorDuration(time.Since(start))
		observability.RecordAnalysis("scenario", err)
		if err != nil {
			if ferr := store.FailRecompute(gen, err); ferr != nil {
				slog.Debug("Dropping stale recompute failure", "scenario_id", store.ID())
			}
			slog.Error("Scenario recompute failed", "scenario_id", store.ID(), "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "state": store.State()})
			return
		}
		if err := store.CompleteRecompute(gen, rec); err != nil {
			slog.Debug("Dropping stale recompute result", "scenario_id", store.ID())
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"state":  store.State(),
			"record": rec,
		})
	}
}

// SaveScenarioSnapshot pins the current result for comparison.
func SaveScenarioSnapshot(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := scenarioOr404(c, registry)
		if store == nil {
			return
		}
		if err := store.SaveSnapshot(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		snap := store.Saved()
		c.JSON(http.StatusOK, gin.H{
			"saved": gin.H{"fields": snap.Fields.Ptrs(), "record": snap.Record},
		})
	}
}

// DiscardScenario terminates the session and forgets its state.
func DiscardScenario(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := scenarioOr404(c, registry)
		if store == nil {
			return
		}
		store.Discard()
		registry.Remove(store.ID())
		slog.Info("Discarded scenario", "scenario_id", store.ID())
		c.JSON(http.StatusOK, gin.H{"status": "discarded"})
	}
}

// viewRecord resolves the ?view= query: "original" (default), "updated", or
// "saved".
func viewRecord(c *gin.Context, store *scenario.Store) *datatypes.AttributionRecord {
	switch c.DefaultQuery("view", "original") {
	case "original":
		return store.Original()
	case "updated":
		return store.Updated()
	case "saved":
		if snap := store.Saved(); snap != nil {
			return snap.Record
		}
		return nil
	default:
		return nil
	}
}

// GetScenarioLayout computes the force-plot layout for one of the session's
// records.
func GetScenarioLayout(registry *Registry, cfg forceplot.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := scenarioOr404(c, registry)
		if store == nil {
			return
		}
		rec := viewRecord(c, store)
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no record for requested view"})
			return
		}
		c.JSON(http.StatusOK, forceplot.Compute(rec, cfg))
	}
}

// ExportScenario streams the attribution table or plot in the requested
// format: csv, json, or html.
func ExportScenario(registry *Registry, cfg forceplot.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := scenarioOr404(c, registry)
		if store == nil {
			return
		}
		rec := viewRecord(c, store)
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no record for requested view"})
			return
		}

		format := c.DefaultQuery("format", "csv")
		var err error
		switch format {
		case "csv":
			c.Header("Content-Type", "text/csv")
			c.Header("Content-Disposition", `attachment; filename="attribution.csv"`)
			err = export.WriteCSV(c.Writer, rec)
		case "json":
			c.Header("Content-Type", "application/json")
			err = export.WriteJSON(c.Writer, rec)
		case "html":
			c.Header("Content-Type", "text/html; charset=utf-8")
			err = export.WriteHTML(c.Writer, rec, cfg)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv, json, or html"})
			return
		}
		if err != nil {
			slog.Error("Export failed", "scenario_id", store.ID(), "format", format, "error", err)
			return
		}
		observability.RecordExport(format)
	}
}
