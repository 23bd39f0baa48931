// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/catalog"
)

// HealthCheck reports service liveness and predictor reachability. The
// service stays "ok" when the predictor is down; the UI uses the predictor
// flag to disable the analyze button.
func HealthCheck(orch *analysis.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{"status": "ok", "predictor": "ok"}
		if err := orch.Health(c.Request.Context()); err != nil {
			resp["predictor"] = "unreachable"
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ListFeatures returns the active feature catalog grouped by category.
func ListFeatures(provider catalog.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := provider.Current()
		grouped := gin.H{}
		for _, f := range cat.Features {
			key := string(f.Category)
			list, _ := grouped[key].([]interface{})
			grouped[key] = append(list, f)
		}
		c.JSON(http.StatusOK, gin.H{
			"version":  cat.Version,
			"features": cat.Features,
			"groups":   grouped,
		})
	}
}
