// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"

	"github.com/AleutianAI/journalclub/services/discussion/handlers"
	"github.com/AleutianAI/journalclub/services/discussion/middleware"
	"github.com/AleutianAI/journalclub/services/discussion/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services the routes are wired to.
type Dependencies struct {
	Citations handlers.CitationStore
	Posts     handlers.PostStore
	Threads   handlers.ThreadViewer

	// Metrics may be nil.
	Metrics *observability.Metrics
	// Gatherer backs /metrics. Nil uses prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// VoteLimiter may be nil to disable vote rate limiting.
	VoteLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.Use(middleware.RequestID(), middleware.AccessLog(logger, deps.Metrics))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	voteChain := []gin.HandlerFunc{}
	if deps.VoteLimiter != nil {
		voteChain = append(voteChain, middleware.VoteRateLimit(deps.VoteLimiter, deps.Metrics))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		citations := v1.Group("/citations")
		{
			citations.POST("", handlers.CreateCitation(deps.Citations))
			citations.GET("", handlers.ListCitations(deps.Citations))
			citations.GET("/:citationId", handlers.GetCitation(deps.Citations))
			citations.POST("/:citationId/threads", handlers.CreateThread(deps.Citations))
			citations.GET("/:citationId/threads", handlers.ListThreads(deps.Citations))
		}

		threads := v1.Group("/threads")
		{
			threads.GET("/:threadId", handlers.GetThread(deps.Threads))
			threads.POST("/:threadId/posts", handlers.CreatePost(deps.Posts))
		}

		posts := v1.Group("/posts")
		{
			posts.PATCH("/:postId", handlers.EditPost(deps.Posts))
			posts.DELETE("/:postId", handlers.DeletePost(deps.Posts))
			posts.GET("/:postId/revisions", handlers.ListRevisions(deps.Posts))
			posts.POST("/:postId/upvote", append(voteChain, handlers.Upvote(deps.Posts, deps.Metrics))...)
			posts.POST("/:postId/downvote", append(voteChain, handlers.Downvote(deps.Posts, deps.Metrics))...)
		}
	}
}
