// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// routeEvent maps a method plus route template to an event classification.
type routeEvent struct {
	eventType    string
	resourceType string
}

var routeEvents = map[string]routeEvent{
	"POST /v1/analyses":                        {"analysis.create", "scenario"},
	"GET /v1/scenarios/:scenarioId":            {"scenario.read", "scenario"},
	"GET /v1/scenarios/:scenarioId/layout":     {"scenario.read", "scenario"},
	"PATCH /v1/scenarios/:scenarioId/fields":   {"scenario.edit", "scenario"},
	"POST /v1/scenarios/:scenarioId/recompute": {"scenario.recompute", "scenario"},
	"POST /v1/scenarios/:scenarioId/snapshot":  {"scenario.snapshot", "scenario"},
	"GET /v1/scenarios/:scenarioId/export":     {"scenario.export", "scenario"},
	"DELETE /v1/scenarios/:scenarioId":         {"scenario.discard", "scenario"},
	"PUT /v1/drafts/:draftId":                  {"draft.write", "draft"},
	"GET /v1/drafts/:draftId":                  {"draft.read", "draft"},
	"DELETE /v1/drafts/:draftId":               {"draft.delete", "draft"},
}

// Middleware records an access event for every request that touches patient
// analyses or drafts. Unmapped routes (health, metrics, the feature catalog)
// pass through unaudited.
func Middleware(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ev, ok := routeEvents[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		resourceID := c.Param("scenarioId")
		if resourceID == "" {
			resourceID = c.Param("draftId")
		}

		event := Event{
			EventType:    ev.eventType,
			Actor:        actor(c.Request),
			ResourceType: ev.resourceType,
			ResourceID:   resourceID,
			Outcome:      outcome(c.Writer.Status()),
			Metadata: map[string]any{
				"status":    c.Writer.Status(),
				"remote_ip": c.ClientIP(),
			},
		}
		if format := c.Query("format"); format != "" {
			event.Metadata["format"] = format
		}

		// Detached context: the request's may already be canceled.
		if err := logger.Log(context.WithoutCancel(c.Request.Context()), event); err != nil {
			slog.Error("Audit log write failed", "event_type", ev.eventType, "error", err)
		}
	}
}

// actor resolves the acting identity. Deployments fronted by an
// authenticating proxy pass it in X-Forwarded-User.
func actor(r *http.Request) string {
	if user := r.Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	return "anonymous"
}

func outcome(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "error"
	case status >= http.StatusBadRequest:
		return "rejected"
	default:
		return "success"
	}
}
