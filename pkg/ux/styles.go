// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the riskview CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Clinical palette. Risk colors match the web force plot so a bar printed in
// a terminal reads the same as one rendered in the browser.
var (
	ColorRiskUp   = lipgloss.Color("#2f80ff") // blue - contributions that raise risk
	ColorRiskDown = lipgloss.Color("#ff3b6a") // red - contributions that lower risk
	ColorAxis     = lipgloss.Color("#8a8a8a") // grey - axis, baselines
	ColorInk      = lipgloss.Color("#d8dee9") // main text

	// Semantic colors
	ColorSuccess = lipgloss.Color("#4cc38a")
	ColorWarning = lipgloss.Color("#f4d03f")
	ColorError   = lipgloss.Color("#e74c3c")
	ColorMuted   = lipgloss.Color("#5c6773")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	RiskUp   lipgloss.Style
	RiskDown lipgloss.Style
	Axis     lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorInk),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorAxis),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Bold(true).Foreground(ColorRiskUp),

	RiskUp:   lipgloss.NewStyle().Foreground(ColorRiskUp),
	RiskDown: lipgloss.NewStyle().Foreground(ColorRiskDown),
	Axis:     lipgloss.NewStyle().Foreground(ColorAxis),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAxis).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// IsInteractive reports whether stdout is a terminal. Non-interactive output
// (pipes, CI) gets plain text with no ANSI styling.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Success prints a styled success message
func Success(message string) {
	fmt.Println(Styles.Success.Render("✓ " + message))
}

// Warning prints a styled warning message
func Warning(message string) {
	fmt.Println(Styles.Warning.Render("⚠ " + message))
}

// Error prints a styled error message
func Error(message string) {
	fmt.Println(Styles.Error.Render("✗ " + message))
}
