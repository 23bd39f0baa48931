// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinrisk/riskview/services/explainer/storage"
)

// SaveDraft persists an in-progress intake form under a client-chosen id so
// a refresh does not lose half-entered data. Storage failures are 500s but
// never block the analyze flow itself.
func SaveDraft(drafts *storage.DraftStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields, err := ParsePatientPayload(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := c.Param("draftId")
		if err := drafts.Save(id, fields); err != nil {
			slog.Error("Failed to save draft", "draft_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save draft"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "saved", "draft_id": id})
	}
}

// GetDraft restores a saved intake form.
func GetDraft(drafts *storage.DraftStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("draftId")
		fields, err := drafts.Load(id)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown draft"})
			return
		}
		if err != nil {
			slog.Error("Failed to load draft", "draft_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load draft"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"draft_id": id, "fields": fields})
	}
}

// DeleteDraft forgets a saved intake form.
func DeleteDraft(drafts *storage.DraftStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("draftId")
		if err := drafts.Delete(id); err != nil {
			slog.Error("Failed to delete draft", "draft_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete draft"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}
