// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the discussion service's HTTP endpoints.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/journalclub/services/discussion/datatypes"
	"github.com/AleutianAI/journalclub/services/discussion/middleware"
	"github.com/AleutianAI/journalclub/services/discussion/ranking"
	"github.com/AleutianAI/journalclub/services/discussion/store"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// Dependencies
// =============================================================================

// CitationStore is the subset of the store used by citation and thread
// endpoints.
type CitationStore interface {
	CreateCitation(ctx context.Context, req datatypes.CreateCitationRequest) (datatypes.Citation, error)
	GetCitation(ctx context.Context, id string) (datatypes.Citation, error)
	ListCitations(ctx context.Context) ([]datatypes.Citation, error)
	CreateThread(ctx context.Context, citationID string, req datatypes.CreateThreadRequest) (datatypes.Thread, error)
	ListThreads(ctx context.Context, citationID string) ([]datatypes.Thread, error)
}

// PostStore is the subset of the store used by post and vote endpoints.
type PostStore interface {
	CreatePost(ctx context.Context, threadID string, req datatypes.CreatePostRequest) (datatypes.PostRecord, error)
	EditPost(ctx context.Context, postID string, req datatypes.EditPostRequest) (datatypes.PostRecord, error)
	DeletePost(ctx context.Context, postID, creatorID string) (datatypes.PostRecord, error)
	Revisions(ctx context.Context, postID string) ([]datatypes.Revision, error)
	Upvote(ctx context.Context, postID, voterID string) (datatypes.PostRecord, error)
	Downvote(ctx context.Context, postID, voterID string) (datatypes.PostRecord, error)
}

// ThreadViewer renders a ranked thread.
type ThreadViewer interface {
	View(ctx context.Context, threadID string, mode ranking.Mode) (*datatypes.ThreadResponse, error)
}

// =============================================================================
// Error Mapping
// =============================================================================

// statusFor maps store and ranking errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrInvalidParent):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrPostDeleted), errors.Is(err, store.ErrMasterPost):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error response and logs it. Client errors
// echo the error text; server errors return only msg.
func abortWithError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg,
			"request_id", middleware.GetRequestID(c),
			"error", err)
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// bindJSON decodes and validates the request body into req.
func bindJSON[T interface{ Validate() error }](c *gin.Context, req T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	if err := req.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed: " + err.Error()})
		return false
	}
	return true
}
