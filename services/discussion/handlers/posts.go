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

// CreatePost handles POST /v1/threads/:threadId/posts.
func CreatePost(s PostStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")
		var req datatypes.CreatePostRequest
		if !bindJSON(c, &req) {
			return
		}
		post, err := s.CreatePost(c.Request.Context(), threadID, req)
		if err != nil {
			abortWithError(c, err, "failed to create post")
			return
		}
		slog.Info("post created", "thread_id", threadID, "post_id", post.ID, "depth", post.Depth)
		c.JSON(http.StatusCreated, datatypes.NewPostView(&post, post.Score()))
	}
}

// EditPost handles PATCH /v1/posts/:postId.
func EditPost(s PostStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.EditPostRequest
		if !bindJSON(c, &req) {
			return
		}
		post, err := s.EditPost(c.Request.Context(), c.Param("postId"), req)
		if err != nil {
			abortWithError(c, err, "failed to edit post")
			return
		}
		c.JSON(http.StatusOK, datatypes.NewPostView(&post, post.Score()))
	}
}

// DeletePost handles DELETE /v1/posts/:postId. The post is soft-deleted
// and keeps its place in the thread.
func DeletePost(s PostStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DeletePostRequest
		if !bindJSON(c, &req) {
			return
		}
		postID := c.Param("postId")
		if _, err := s.DeletePost(c.Request.Context(), postID, req.CreatorID); err != nil {
			abortWithError(c, err, "failed to delete post")
			return
		}
		slog.Info("post deleted", "post_id", postID)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "post_id": postID})
	}
}

// ListRevisions handles GET /v1/posts/:postId/revisions.
func ListRevisions(s PostStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID := c.Param("postId")
		revs, err := s.Revisions(c.Request.Context(), postID)
		if err != nil {
			abortWithError(c, err, "failed to load revisions")
			return
		}
		c.JSON(http.StatusOK, gin.H{"post_id": postID, "revisions": revs})
	}
}
