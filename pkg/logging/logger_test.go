// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Levels
// =============================================================================

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestLevel_ToSlog(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelDebug.toSlogLevel())
	assert.Equal(t, slog.LevelInfo, LevelInfo.toSlogLevel())
	assert.Equal(t, slog.LevelWarn, LevelWarn.toSlogLevel())
	assert.Equal(t, slog.LevelError, LevelError.toSlogLevel())
}

// =============================================================================
// Construction
// =============================================================================

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()

	assert.Equal(t, "riskview", logger.config.Service)
	assert.Equal(t, LevelInfo, logger.config.Level)
	require.NotNil(t, logger.Slog())
}

func TestNew_WithLogDir(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "cli",
		Quiet:   true,
	})
	logger.Info("analysis started", "scenario_id", "scn-1")
	require.NoError(t, logger.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "cli_"))

	raw, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	// File logs are JSON with the service attribute.
	assert.Contains(t, string(raw), `"analysis started"`)
	assert.Contains(t, string(raw), `"service":"cli"`)
	assert.Contains(t, string(raw), `"scenario_id":"scn-1"`)
}

func TestNew_DefaultServiceFileName(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Quiet: true})
	logger.Info("hello")
	require.NoError(t, logger.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "riskview_"))
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelWarn, LogDir: dir, Quiet: true})
	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	files, _ := os.ReadDir(dir)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dropped")
	assert.Contains(t, string(raw), "kept")
}

// =============================================================================
// With and Close
// =============================================================================

func TestWith_SharesResources(t *testing.T) {
	logger := New(Config{Quiet: true})
	child := logger.With("scenario_id", "scn-1")

	assert.Equal(t, logger.config, child.config)
	assert.Equal(t, logger.file, child.file)
	require.NoError(t, logger.Close())
}

func TestClose_FlushesExporter(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Quiet: true, Exporter: exp, Service: "cli"})

	logger.Info("recompute finished", "outcome", "ok")

	// Export is async; give it a beat before closing.
	require.Eventually(t, func() bool {
		return len(exp.Entries()) == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, logger.Close())

	entries := exp.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "recompute finished", entries[0].Message)
	assert.Equal(t, LevelInfo, entries[0].Level)
	assert.Equal(t, "cli", entries[0].Service)
	assert.Equal(t, "ok", entries[0].Attrs["outcome"])
}

func TestLogger_ConcurrentUse(t *testing.T) {
	logger := New(Config{Quiet: true, LogDir: t.TempDir()})
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("tick", "worker", n, "iter", j)
			}
		}(i)
	}
	wg.Wait()
}

// =============================================================================
// Helpers and exporters
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".riskview/logs"), expandPath("~/.riskview/logs"))
	assert.Equal(t, "/var/log/riskview", expandPath("/var/log/riskview"))
	assert.Equal(t, "relative/path", expandPath("relative/path"))
}

func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"field", "BMI", "count", 3, 42, "ignored-non-string-key"})
	assert.Equal(t, "BMI", m["field"])
	assert.Equal(t, 3, m["count"])
	assert.Len(t, m, 2)
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewWriterExporter(&buf)

	err := exp.Export(context.Background(), LogEntry{
		Timestamp: time.Now(),
		Level:     LevelWarn,
		Message:   "predictor slow",
		Attrs:     map[string]any{"ms": 900},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "predictor slow")
	require.NoError(t, exp.Flush(context.Background()))
	require.NoError(t, exp.Close())
}

func TestNopExporter(t *testing.T) {
	var exp NopExporter
	assert.NoError(t, exp.Export(context.Background(), LogEntry{}))
	assert.NoError(t, exp.Flush(context.Background()))
	assert.NoError(t, exp.Close())
}
