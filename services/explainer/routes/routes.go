// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinrisk/riskview/pkg/audit"
	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
	"github.com/clinrisk/riskview/services/explainer/handlers"
	"github.com/clinrisk/riskview/services/explainer/storage"
)

// SetupRoutes wires the HTTP surface: analysis intake, scenario sessions,
// the feature catalog, drafts, and operational endpoints. Every route that
// touches patient analyses runs behind the access-audit middleware.
func SetupRoutes(router *gin.Engine, orch *analysis.Orchestrator, registry *handlers.Registry,
	provider catalog.Provider, drafts *storage.DraftStore, auditor audit.Logger, plotCfg forceplot.Config) {

	router.GET("/health", handlers.HealthCheck(orch))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(audit.Middleware(auditor))
	{
		v1.POST("/analyses", handlers.CreateAnalysis(orch, registry, provider))
		v1.GET("/features", handlers.ListFeatures(provider))

		// Scenario session routes
		scenarios := v1.Group("/scenarios")
		{
			scenarios.GET("/:scenarioId", handlers.GetScenario(registry))
			scenarios.PATCH("/:scenarioId/fields", handlers.EditScenarioField(registry))
			scenarios.POST("/:scenarioId/recompute", handlers.RecomputeScenario(orch, registry))
			scenarios.POST("/:scenarioId/snapshot", handlers.SaveScenarioSnapshot(registry))
			scenarios.GET("/:scenarioId/layout", handlers.GetScenarioLayout(registry, plotCfg))
			scenarios.GET("/:scenarioId/export", handlers.ExportScenario(registry, plotCfg))
			scenarios.DELETE("/:scenarioId", handlers.DiscardScenario(registry))
		}

		// Intake draft routes
		draftGroup := v1.Group("/drafts")
		{
			draftGroup.PUT("/:draftId", handlers.SaveDraft(drafts))
			draftGroup.GET("/:draftId", handlers.GetDraft(drafts))
			draftGroup.DELETE("/:draftId", handlers.DeleteDraft(drafts))
		}
	}
}
