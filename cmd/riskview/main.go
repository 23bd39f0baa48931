// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clinrisk/riskview/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "riskview",
	Short: "A CLI for clinical risk attribution analysis",
	Long: `Riskview sends a patient record to the risk predictor and renders
the per-feature attribution breakdown as a force bar, a table, or an
export file, without going through the explainer web service.`,
}

// Flags shared by every subcommand that talks to the predictor or reads
// the feature catalog.
var (
	predictorURL string
	catalogPath  string
	noColor      bool
	verbose      bool

	logger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&predictorURL, "predictor-url", "",
		"Predictor base URL (defaults to $RISKVIEW_PREDICTOR_URL, then http://localhost:5001)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "",
		"Feature catalog YAML (defaults to the built-in cardiovascular catalog)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable ANSI styling even on a terminal")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log debug detail to stderr")

	// Rendered output owns stdout, so diagnostics stay quiet unless asked
	// for; a file trail is always kept.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg := logging.Config{
			Level:   logging.LevelInfo,
			LogDir:  "~/.riskview/logs",
			Service: "cli",
			Quiet:   !verbose,
		}
		if verbose {
			cfg.Level = logging.LevelDebug
		}
		logger = logging.New(cfg)
		slog.SetDefault(logger.Slog())
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	}
}
