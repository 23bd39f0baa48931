// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package predictor talks to the external risk-model inference service. The
// service scores a flat patient record and returns per-feature attributions;
// this package only moves bytes and classifies failures, it never interprets
// the model output beyond decoding it.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clinrisk/riskview/services/explainer/datatypes"
)

var tracer = otel.Tracer("riskview.predictor")

var (
	// ErrUnreachable wraps transport failures: the predictor could not be
	// reached at all. Distinct from ErrRejected so callers can word the
	// user-facing message ("is the model server running?").
	ErrUnreachable = errors.New("predictor unreachable")

	// ErrRejected wraps non-200 responses: the predictor was reached but
	// refused or failed the request.
	ErrRejected = errors.New("predictor rejected request")
)

const (
	defaultBaseURL = "http://localhost:5001"
	predictPath    = "/predict"
	healthPath     = "/health"
)

// Client is an HTTP client for the inference service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient reads RISKVIEW_PREDICTOR_URL, falling back to the local default
// used in development deployments.
func NewClient() *Client {
	baseURL := os.Getenv("RISKVIEW_PREDICTOR_URL")
	if baseURL == "" {
		slog.Warn("RISKVIEW_PREDICTOR_URL not set, using default", "base_url", defaultBaseURL)
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing predictor client", "base_url", baseURL)
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// NewClientWithURL builds a client against an explicit base URL. Used by the
// CLI flag path and by tests.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Predict scores one patient record. Unset fields are sent as JSON null; the
// model's own imputation handles them. The raw decoded response is returned
// so the caller can normalize it into an AttributionRecord.
func (c *Client) Predict(ctx context.Context, fields map[string]*float64) (*datatypes.PredictorResponse, error) {
	ctx, span := tracer.Start(ctx, "PredictorClient.Predict")
	defer span.End()
	span.SetAttributes(attribute.Int("predictor.num_fields", len(fields)))

	slog.Debug("Requesting prediction", "num_fields", len(fields))
	reqBodyBytes, err := json.Marshal(fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to marshal predictor request: %w", err)
	}

	// Use NewRequestWithContext to respect context cancellation/timeout
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+predictPath, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create predictor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Predictor call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read predictor response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Predictor returned an error", "status_code", resp.StatusCode, "response", string(respBodyBytes))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(respBodyBytes))
	}

	var predResp datatypes.PredictorResponse
	if err := json.Unmarshal(respBodyBytes, &predResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse predictor response", "error", err, "response", string(respBodyBytes))
		return nil, fmt.Errorf("%w: failed to parse predictor response: %v", datatypes.ErrMalformedResponse, err)
	}

	slog.Debug("Received prediction")
	return &predResp, nil
}

// Health probes the predictor's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "PredictorClient.Health")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}
