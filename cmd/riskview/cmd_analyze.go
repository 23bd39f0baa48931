// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinrisk/riskview/pkg/ux"
	"github.com/clinrisk/riskview/services/explainer/analysis"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/export"
	"github.com/clinrisk/riskview/services/explainer/forceplot"
	"github.com/clinrisk/riskview/services/explainer/handlers"
	"github.com/clinrisk/riskview/services/explainer/scenario"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	analyzeFormat string  // Output format: bar, table, json, csv, html
	analyzeOutput string  // Output file; empty writes stdout
	analyzeWidth  int     // Force bar width in cells
	analyzeTick   float64 // Fixed axis tick unit; zero derives from data
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var analyzeCmd = &cobra.Command{
	Use:   "analyze [patient.json]",
	Short: "Run a risk analysis for one patient record",
	Long: `Sends a patient record to the predictor and renders the attribution
breakdown. The record is a flat JSON object of field name to number or
null, or a single-element array wrapping one. Pass "-" to read stdin.

Examples:
  riskview analyze patient.json                 # force bar in the terminal
  riskview analyze patient.json --format table  # aligned contribution table
  riskview analyze patient.json --format html -o report.html
  cat patient.json | riskview analyze -`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalyzeCommand,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "bar",
		"Output format: bar, table, json, csv, html")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "",
		"Write output to a file instead of stdout")
	analyzeCmd.Flags().IntVar(&analyzeWidth, "width", 72,
		"Force bar width in terminal cells")
	analyzeCmd.Flags().Float64Var(&analyzeTick, "tick", 0,
		"Fixed axis tick unit (0 derives one from the data)")
	rootCmd.AddCommand(analyzeCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runAnalyzeCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cat, err := loadActiveCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog error: %v\n", err)
		os.Exit(1)
	}

	in, err := openPatientFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read patient record: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	out := io.Writer(os.Stdout)
	if analyzeOutput != "" {
		f, err := os.Create(analyzeOutput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	opts := analyzeOptions{
		Format: analyzeFormat,
		Width:  analyzeWidth,
		Tick:   analyzeTick,
		Styled: styled() && analyzeOutput == "",
	}
	orch := analysis.NewOrchestrator(newPredictorClient())

	err = ux.WithSpinner("Analyzing patient record", func() error {
		return analyzePatient(ctx, cat, orch, in, out, opts)
	})
	if err != nil {
		os.Exit(1)
	}
}

type analyzeOptions struct {
	Format string
	Width  int
	Tick   float64
	Styled bool
}

// analyzePatient parses and validates the record, runs the initial analysis,
// and writes the rendered result.
func analyzePatient(ctx context.Context, cat *catalog.Catalog, orch *analysis.Orchestrator, in io.Reader, out io.Writer, opts analyzeOptions) error {
	raw, err := handlers.ParsePatientPayload(in)
	if err != nil {
		return err
	}
	fields, err := cat.Intake(raw)
	if err != nil {
		return err
	}

	rec, err := orch.RunInitialAnalysis(ctx, scenario.Fields(fields).Ptrs())
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	plotCfg := forceplot.Config{TickUnit: opts.Tick}
	switch opts.Format {
	case "bar", "":
		layout := forceplot.Compute(rec, plotCfg)
		if _, err := io.WriteString(out, ux.RenderForceBar(layout, opts.Width, opts.Styled)); err != nil {
			return err
		}
	case "table":
		if _, err := io.WriteString(out, ux.RenderAttributionTable(rec, opts.Styled)); err != nil {
			return err
		}
	case "json":
		return export.WriteJSON(out, rec)
	case "csv":
		return export.WriteCSV(out, rec)
	case "html":
		return export.WriteHTML(out, rec, plotCfg)
	default:
		return fmt.Errorf("unknown format %q (want bar, table, json, csv, or html)", opts.Format)
	}
	return nil
}
