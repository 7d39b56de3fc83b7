// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics and the OpenTelemetry
// bootstrap for the discussion service.
//
// # Description
//
// Metrics cover:
//   - HTTP requests (by route, method and status)
//   - Vote clicks (by direction and outcome)
//   - Thread integrity failures (by kind)
//   - Rendered thread sizes
//
// # Integration
//
// Metrics are registered on the Registerer passed to NewMetrics and served
// from /metrics. Tests pass a fresh prometheus.NewRegistry().
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "journalclub"
	httpSubsystem    = "http"
	threadSubsystem  = "thread"
)

// VoteDirection labels a vote metric.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// VoteOutcome labels how a vote click ended.
type VoteOutcome string

const (
	VoteApplied     VoteOutcome = "applied"
	VoteRejected    VoteOutcome = "rejected"
	VoteRateLimited VoteOutcome = "rate_limited"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	// RequestsTotal counts HTTP requests.
	// Labels: route (gin full path), method, status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: route, method
	RequestDurationSeconds *prometheus.HistogramVec

	// InflightRequests tracks requests currently being served.
	InflightRequests prometheus.Gauge

	// VotesTotal counts vote clicks.
	// Labels: direction (up, down), outcome (applied, rejected, rate_limited)
	VotesTotal *prometheus.CounterVec

	// IntegrityErrorsTotal counts thread renders that failed validation.
	// Labels: kind (missing_root, multiple_roots, orphan_post, ...)
	IntegrityErrorsTotal *prometheus.CounterVec

	// ThreadPosts observes the number of posts in each rendered thread.
	ThreadPosts prometheus.Histogram
}

// NewMetrics creates and registers all collectors on reg.
//
// # Description
//
// Uses promauto.With so registration happens at construction. Registering
// twice on the same registry panics, so call once per registry.
//
// # Inputs
//
//   - reg: Target registry. prometheus.DefaultRegisterer in production.
//
// # Outputs
//
//   - *Metrics: Ready-to-use collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP handler latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route", "method"},
		),

		InflightRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "inflight_requests",
				Help:      "HTTP requests currently being served",
			},
		),

		VotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: threadSubsystem,
				Name:      "votes_total",
				Help:      "Vote clicks by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),

		IntegrityErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: threadSubsystem,
				Name:      "integrity_errors_total",
				Help:      "Thread renders rejected by structural validation, by kind",
			},
			[]string{"kind"},
		),

		ThreadPosts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: threadSubsystem,
				Name:      "posts",
				Help:      "Number of posts in rendered threads",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordVote records the outcome of a vote click.
func (m *Metrics) RecordVote(dir VoteDirection, outcome VoteOutcome) {
	m.VotesTotal.WithLabelValues(string(dir), string(outcome)).Inc()
}

// RecordIntegrityError counts a failed thread render.
func (m *Metrics) RecordIntegrityError(kind string) {
	m.IntegrityErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordThreadSize observes a rendered thread's post count.
func (m *Metrics) RecordThreadSize(posts int) {
	m.ThreadPosts.Observe(float64(posts))
}
