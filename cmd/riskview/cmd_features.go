// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clinrisk/riskview/pkg/ux"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/datatypes"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the active catalog's intake fields",
	Long: `Prints the feature catalog grouped by clinical category, with each
field's bounds, step, and default. Useful for building a patient record
by hand or checking what a deployment's catalog accepts.`,
	Run: runFeaturesCommand,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func runFeaturesCommand(cmd *cobra.Command, args []string) {
	cat, err := loadActiveCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog error: %v\n", err)
		os.Exit(1)
	}
	renderFeatures(os.Stdout, cat, styled())
}

// renderFeatures prints the catalog grouped by category in catalog order.
func renderFeatures(w io.Writer, cat *catalog.Catalog, styled bool) {
	order := []datatypes.FeatureCategory{
		datatypes.CategoryDemographics,
		datatypes.CategoryVitals,
		datatypes.CategoryLabs,
		datatypes.CategoryMedications,
	}
	for _, category := range order {
		var rows []string
		for _, f := range cat.Features {
			if f.Category != category {
				continue
			}
			rows = append(rows, featureRow(f))
		}
		if len(rows) == 0 {
			continue
		}
		header := strings.ToUpper(string(category))
		if styled {
			header = ux.Styles.Title.Render(header)
		}
		fmt.Fprintln(w, header)
		for _, row := range rows {
			fmt.Fprintln(w, row)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "catalog version %d, %d features\n", cat.Version, len(cat.Features))
}

func featureRow(f datatypes.Feature) string {
	var constraints []string
	if f.Min != 0 || f.Max != 0 {
		constraints = append(constraints, fmt.Sprintf("range %s..%s",
			strconv.FormatFloat(f.Min, 'f', -1, 64), strconv.FormatFloat(f.Max, 'f', -1, 64)))
	}
	if f.Step != 0 {
		constraints = append(constraints, "step "+strconv.FormatFloat(f.Step, 'f', -1, 64))
	}
	if f.IntegerOnly {
		constraints = append(constraints, "integer")
	}
	if f.NonNegative {
		constraints = append(constraints, "non-negative")
	}
	if f.Default != nil {
		constraints = append(constraints, "default "+strconv.FormatFloat(*f.Default, 'f', -1, 64))
	}
	row := fmt.Sprintf("  %-20s %s", f.Name, f.Label)
	if len(constraints) > 0 {
		row += "  (" + strings.Join(constraints, ", ") + ")"
	}
	return row
}
