// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrisk/riskview/pkg/audit"
	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/datatypes"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
	"github.com/clinrisk/riskview/services/explainer/handlers"
	"github.com/clinrisk/riskview/services/explainer/storage"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockPredictor is a minimal mock for analysis.PredictorClient
type mockPredictor struct{}

func (m *mockPredictor) Predict(_ context.Context, _ map[string]*float64) (*datatypes.PredictorResponse, error) {
	base := 0.2
	val := 67.0
	return &datatypes.PredictorResponse{
		BaseValue:     &base,
		ShapValues:    []float64{0.05},
		FeatureNames:  []string{"anchor_age"},
		FeatureValues: []*float64{&val},
	}, nil
}

func (m *mockPredictor) Health(_ context.Context) error { return nil }

func testRouter(t *testing.T) (*gin.Engine, *audit.MemoryLogger) {
	t.Helper()
	auditor := audit.NewMemoryLogger(0)
	router := gin.New()
	orch := analysis.NewOrchestrator(&mockPredictor{})
	drafts, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { drafts.Close() })

	SetupRoutes(router, orch, handlers.NewRegistry(),
		catalog.Static{Catalog: catalog.Default()}, drafts, auditor, forceplot.Config{})
	return router, auditor
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_CoreRoutesRegistered(t *testing.T) {
	router, _ := testRouter(t)

	for _, tc := range []struct {
		method, path string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/v1/features"},
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestSetupRoutes_ScenarioRoutesRegistered(t *testing.T) {
	router, _ := testRouter(t)

	// Unknown scenario ids should hit the handler (404 from the handler,
	// not gin's no-route).
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/scenarios/unknown", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown scenario")
}

func TestSetupRoutes_UnregisteredPathIs404(t *testing.T) {
	router, _ := testRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v2/analyses", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSetupRoutes_ScenarioAccessIsAudited(t *testing.T) {
	router, auditor := testRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/scenarios/unknown", nil)
	req.Header.Set("X-Forwarded-User", "dr-jones")
	router.ServeHTTP(w, req)

	events, err := auditor.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "scenario.read", events[0].EventType)
	assert.Equal(t, "dr-jones", events[0].Actor)
	assert.Equal(t, "rejected", events[0].Outcome)
}
