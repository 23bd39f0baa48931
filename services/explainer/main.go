// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/clinrisk/riskview/pkg/audit"
	"github.com/clinrisk/riskview/pkg/logging"
	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
	"github.com/clinrisk/riskview/services/explainer/handlers"
	"github.com/clinrisk/riskview/services/explainer/predictor"
	"github.com/clinrisk/riskview/services/explainer/routes"
	"github.com/clinrisk/riskview/services/explainer/storage"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// Tracing is optional in local deployments.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("explainer-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// loadCatalog picks the feature catalog: a watched file when
// RISKVIEW_CATALOG is set, the built-in cardiovascular set otherwise.
func loadCatalog() (catalog.Provider, func()) {
	path := os.Getenv("RISKVIEW_CATALOG")
	if path == "" {
		slog.Info("RISKVIEW_CATALOG not set, using built-in catalog")
		return catalog.Static{Catalog: catalog.Default()}, func() {}
	}
	watcher, err := catalog.NewWatcher(path)
	if err != nil {
		log.Fatalf("Failed to load feature catalog: %v", err)
	}
	return watcher, func() { watcher.Close() }
}

// newAuditLogger builds the access-audit trail. RISKVIEW_AUDIT=off disables
// it; anything else keeps a bounded in-memory trail. Sites with SIEM
// forwarding swap in their own audit.Logger here.
func newAuditLogger() audit.Logger {
	if os.Getenv("RISKVIEW_AUDIT") == "off" {
		slog.Info("Access auditing disabled")
		return audit.NopLogger{}
	}
	return audit.NewMemoryLogger(0)
}

// openDrafts opens the intake-draft store. Persistence is optional: with no
// RISKVIEW_DATA_DIR the store runs in memory and drafts die with the process.
func openDrafts() *storage.DraftStore {
	cfg := storage.InMemoryConfig()
	if dir := os.Getenv("RISKVIEW_DATA_DIR"); dir != "" {
		cfg = storage.DefaultConfig(dir)
	} else {
		slog.Info("RISKVIEW_DATA_DIR not set, drafts are in-memory only")
	}
	cfg.Logger = slog.Default()
	drafts, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open draft store: %v", err)
	}
	return drafts
}

func plotConfig() forceplot.Config {
	var cfg forceplot.Config
	if raw := os.Getenv("RISKVIEW_TICK_UNIT"); raw != "" {
		tick, err := strconv.ParseFloat(raw, 64)
		if err != nil || tick <= 0 {
			slog.Warn("Ignoring invalid RISKVIEW_TICK_UNIT", "value", raw)
		} else {
			cfg.TickUnit = tick
		}
	}
	return cfg
}

func main() {
	port := os.Getenv("EXPLAINER_PORT")
	if port == "" {
		port = "12230"
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("RISKVIEW_LOG_DIR"),
		Service: "explainer",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	provider, closeCatalog := loadCatalog()
	defer closeCatalog()

	drafts := openDrafts()
	defer drafts.Close()

	orch := analysis.NewOrchestrator(predictor.NewClient())
	registry := handlers.NewRegistry()
	auditor := newAuditLogger()

	router := gin.Default()
	router.Use(otelgin.Middleware("explainer-service"))
	routes.SetupRoutes(router, orch, registry, provider, drafts, auditor, plotConfig())

	log.Println("Starting the explainer server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
