// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/clinrisk/riskview/pkg/audit"
	"github.com/clinrisk/riskview/pkg/ux"
	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
	"github.com/clinrisk/riskview/services/explainer/handlers"
	"github.com/clinrisk/riskview/services/explainer/routes"
	"github.com/clinrisk/riskview/services/explainer/storage"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	servePort    string // Listen port
	serveDataDir string // Draft persistence directory; empty keeps drafts in memory
	serveTick    float64
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the explainer service locally",
	Long: `Starts the explainer HTTP service on this machine: analysis intake,
scenario sessions, the feature catalog, exports, and drafts. This is the
single-user path; the containerized deployment runs the service binary
with OTLP tracing instead.

The server shuts down cleanly on SIGINT/SIGTERM, finishing in-flight
requests first.`,
	Run: runServeCommand,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "12230", "Listen port")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "",
		"Directory for draft persistence (empty keeps drafts in memory)")
	serveCmd.Flags().Float64Var(&serveTick, "tick", 0,
		"Fixed force-plot axis tick unit (0 derives one from the data)")
	rootCmd.AddCommand(serveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServeCommand(cmd *cobra.Command, args []string) {
	provider, closeCatalog, err := serveCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog error: %v\n", err)
		os.Exit(1)
	}
	defer closeCatalog()

	draftCfg := storage.InMemoryConfig()
	if serveDataDir != "" {
		draftCfg = storage.DefaultConfig(serveDataDir)
	}
	drafts, err := storage.Open(draftCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Draft store error: %v\n", err)
		os.Exit(1)
	}
	defer drafts.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	routes.SetupRoutes(router, analysis.NewOrchestrator(newPredictorClient()),
		handlers.NewRegistry(), provider, drafts, audit.NewMemoryLogger(0),
		forceplot.Config{TickUnit: serveTick})

	if err := runServer(router, servePort); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// serveCatalog resolves the catalog provider: a --catalog path gets the
// hot-reloading watcher, otherwise the built-in catalog is fixed.
func serveCatalog() (catalog.Provider, func(), error) {
	if catalogPath == "" {
		return catalog.Static{Catalog: catalog.Default()}, func() {}, nil
	}
	watcher, err := catalog.NewWatcher(catalogPath)
	if err != nil {
		return nil, nil, err
	}
	return watcher, func() { watcher.Close() }, nil
}

// runServer runs the HTTP server until a shutdown signal arrives, then
// drains in-flight requests.
func runServer(handler http.Handler, port string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: ":" + port, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ux.Success("explainer listening on :" + port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
