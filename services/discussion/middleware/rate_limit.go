// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/journalclub/services/discussion/observability"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per client.
//
// The limit can be changed at runtime with SetLimit; existing buckets are
// updated in place. Buckets idle for longer than idleTTL are dropped on
// the next Allow call that sweeps.
//
// Thread Safety: Safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*client
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond events per client with the given burst.
// perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
	rl.SetLimit(perSecond, burst)
	return rl
}

// SetLimit changes the rate and burst for all clients.
func (rl *RateLimiter) SetLimit(perSecond float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if perSecond <= 0 {
		rl.limit = rate.Inf
	} else {
		rl.limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	rl.burst = burst

	now := rl.now()
	for _, c := range rl.clients {
		c.limiter.SetLimitAt(now, rl.limit)
		c.limiter.SetBurstAt(now, rl.burst)
	}
}

// Limit returns the current rate and burst.
func (rl *RateLimiter) Limit() (rate.Limit, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.limit, rl.burst
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.idleTTL {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > rl.idleTTL {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// VoteRateLimit rejects vote clicks above the limit with 429.
//
// # Description
//
// Clients are keyed by IP. The vote direction is taken from the last path
// segment ("upvote" or "downvote") and used to label the rate-limited
// metric.
//
// # Inputs
//
//   - rl: Shared limiter. Must not be nil.
//   - metrics: Optional; nil disables the rate-limited counter.
func VoteRateLimit(rl *RateLimiter, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		if metrics != nil {
			dir := observability.VoteUp
			if strings.HasSuffix(c.Request.URL.Path, "/downvote") {
				dir = observability.VoteDown
			}
			metrics.RecordVote(dir, observability.VoteRateLimited)
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many votes, slow down"})
	}
}
