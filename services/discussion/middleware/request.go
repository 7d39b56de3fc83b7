// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the discussion service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID ──► assigns or propagates X-Request-ID
//	   │
//	   ▼
//	AccessLog ──► slog line per request, metrics per route
//	   │
//	   ▼
//	VoteRateLimit (vote routes only)
//	   │
//	   ▼
//	Handler
package middleware

import (
	"log/slog"
	"time"

	"github.com/AleutianAI/journalclub/services/discussion/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "journalclub_request_id"

// maxRequestIDLen bounds client-supplied IDs.
const maxRequestIDLen = 128

// =============================================================================
// Context Helpers
// =============================================================================

// SetRequestID stores the request ID in the Gin context.
func SetRequestID(c *gin.Context, id string) {
	c.Set(requestIDKey, id)
}

// GetRequestID returns the request ID, or "" if RequestID did not run.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Middleware
// =============================================================================

// RequestID propagates a client X-Request-ID or generates a UUID, and
// echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		SetRequestID(c, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs every request and records it in metrics.
//
// # Description
//
// Runs the rest of the chain, then logs method, route, status and
// latency. 5xx responses log at Error, 4xx at Warn, the rest at Debug.
// The route label is gin's full path so metric cardinality stays bounded.
//
// # Inputs
//
//   - logger: Destination for access lines. Must not be nil.
//   - metrics: Optional; nil disables request metrics.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for router.Use.
func AccessLog(logger *slog.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if metrics != nil {
			metrics.InflightRequests.Inc()
			defer metrics.InflightRequests.Dec()
		}

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if metrics != nil {
			metrics.RecordRequest(route, c.Request.Method, status, elapsed)
		}

		attrs := []any{
			slog.String("request_id", GetRequestID(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("latency", elapsed),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		switch {
		case status >= 500:
			logger.Error("request failed", attrs...)
		case status >= 400:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Debug("request served", attrs...)
		}
	}
}
