// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/journalclub/services/discussion/middleware"
	"github.com/AleutianAI/journalclub/services/discussion/ranking"
	"github.com/gin-gonic/gin"
)

// GetThread handles GET /v1/threads/:threadId.
//
// # Description
//
// Renders the ranked thread. ?mode=indent (default) returns bracketed
// items; ?mode=plain returns a flat ranked list. A thread whose posts do
// not form a valid tree is answered with 500, an empty item list and a
// diagnostic naming the failure kind, never a partial tree.
//
// # Inputs
//
//   - v: Thread renderer. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: The handler.
func GetThread(v ThreadViewer) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")
		mode, err := ranking.ParseMode(c.Query("mode"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := v.View(c.Request.Context(), threadID, mode)
		if err != nil && resp != nil && ranking.IsIntegrityError(err) {
			slog.Error("thread render failed integrity check",
				"request_id", middleware.GetRequestID(c),
				"thread_id", threadID,
				"error", err)
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  "thread structure is inconsistent",
				"kind":   ranking.IntegrityKind(err),
				"detail": err.Error(),
				"thread": resp.Thread,
				"mode":   mode,
				"items":  []any{},
			})
			return
		}
		if err != nil {
			abortWithError(c, err, "failed to load thread")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
