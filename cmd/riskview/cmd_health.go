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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinrisk/riskview/pkg/ux"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the risk predictor is reachable",
	Run:   runHealthCommand,
}

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second,
		"How long to wait for the predictor")
	rootCmd.AddCommand(healthCmd)
}

func runHealthCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	client := newPredictorClient()
	if err := client.Health(ctx); err != nil {
		ux.Error(fmt.Sprintf("predictor unreachable: %v", err))
		os.Exit(1)
	}
	ux.Success("predictor healthy")
}
