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

	"github.com/AleutianAI/journalclub/services/discussion/datatypes"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateCitation handles POST /v1/citations.
func CreateCitation(s CitationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateCitationRequest
		if !bindJSON(c, &req) {
			return
		}
		citation, err := s.CreateCitation(c.Request.Context(), req)
		if err != nil {
			abortWithError(c, err, "failed to create citation")
			return
		}
		c.JSON(http.StatusCreated, datatypes.NewCitationView(citation, nil))
	}
}

// ListCitations handles GET /v1/citations.
func ListCitations(s CitationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		citations, err := s.ListCitations(c.Request.Context())
		if err != nil {
			abortWithError(c, err, "failed to list citations")
			return
		}
		views := make([]datatypes.CitationView, 0, len(citations))
		for _, cit := range citations {
			views = append(views, datatypes.NewCitationView(cit, nil))
		}
		c.JSON(http.StatusOK, gin.H{"citations": views})
	}
}

// GetCitation handles GET /v1/citations/:citationId. The response carries
// the formatted author fields and the citation's threads.
func GetCitation(s CitationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("citationId")
		citation, err := s.GetCitation(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err, "failed to load citation")
			return
		}
		threads, err := s.ListThreads(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err, "failed to load citation threads")
			return
		}
		c.JSON(http.StatusOK, datatypes.NewCitationView(citation, threads))
	}
}

// CreateThread handles POST /v1/citations/:citationId/threads.
func CreateThread(s CitationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		citationID := c.Param("citationId")
		var req datatypes.CreateThreadRequest
		if !bindJSON(c, &req) {
			return
		}
		thread, err := s.CreateThread(c.Request.Context(), citationID, req)
		if err != nil {
			abortWithError(c, err, "failed to create thread")
			return
		}
		slog.Info("thread created", "thread_id", thread.ID, "citation_id", citationID)
		c.JSON(http.StatusCreated, thread)
	}
}

// ListThreads handles GET /v1/citations/:citationId/threads.
func ListThreads(s CitationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		threads, err := s.ListThreads(c.Request.Context(), c.Param("citationId"))
		if err != nil {
			abortWithError(c, err, "failed to list threads")
			return
		}
		if threads == nil {
			threads = []datatypes.Thread{}
		}
		c.JSON(http.StatusOK, gin.H{"threads": threads})
	}
}
