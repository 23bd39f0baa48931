// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"io"
	"os"

	"github.com/clinrisk/riskview/pkg/ux"
	"github.com/clinrisk/riskview/services/explainer/catalog"
	"github.com/clinrisk/riskview/services/explainer/predictor"
)

// loadActiveCatalog resolves the --catalog flag: an explicit path is loaded
// and validated, otherwise the built-in cardiovascular catalog applies.
func loadActiveCatalog() (*catalog.Catalog, error) {
	if catalogPath != "" {
		return catalog.Load(catalogPath)
	}
	return catalog.Default(), nil
}

// newPredictorClient resolves the --predictor-url flag, falling back to the
// client's own environment lookup.
func newPredictorClient() *predictor.Client {
	if predictorURL != "" {
		return predictor.NewClientWithURL(predictorURL)
	}
	return predictor.NewClient()
}

// openPatientFile opens the patient record argument; "-" reads stdin.
func openPatientFile(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// styled reports whether output should carry ANSI styling.
func styled() bool {
	return !noColor && ux.IsInteractive()
}
