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
	"context"
	"net/http"

	"github.com/AleutianAI/journalclub/services/discussion/datatypes"
	"github.com/AleutianAI/journalclub/services/discussion/observability"
	"github.com/gin-gonic/gin"
)

type voteFunc func(ctx context.Context, postID, voterID string) (datatypes.PostRecord, error)

// Upvote handles POST /v1/posts/:postId/upvote. Clicking twice withdraws
// the vote; an upvote replaces the voter's downvote.
func Upvote(s PostStore, metrics *observability.Metrics) gin.HandlerFunc {
	return vote(s.Upvote, observability.VoteUp, metrics)
}

// Downvote handles POST /v1/posts/:postId/downvote.
func Downvote(s PostStore, metrics *observability.Metrics) gin.HandlerFunc {
	return vote(s.Downvote, observability.VoteDown, metrics)
}

func vote(apply voteFunc, dir observability.VoteDirection, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.VoteRequest
		if !bindJSON(c, &req) {
			return
		}
		postID := c.Param("postId")
		post, err := apply(c.Request.Context(), postID, req.VoterID)
		if err != nil {
			if metrics != nil {
				metrics.RecordVote(dir, observability.VoteRejected)
			}
			abortWithError(c, err, "failed to record vote")
			return
		}
		if metrics != nil {
			metrics.RecordVote(dir, observability.VoteApplied)
		}
		c.JSON(http.StatusOK, datatypes.VoteResponse{
			PostID: post.ID,
			Score:  post.Score(),
			Vote:   post.VoteOf(req.VoterID),
		})
	}
}
