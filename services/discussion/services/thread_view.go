// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services holds the discussion service's business logic, between
// the HTTP handlers and the store.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/journalclub/services/discussion/datatypes"
	"github.com/AleutianAI/journalclub/services/discussion/ranking"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var (
	tracer = otel.Tracer("journalclub.discussion.thread_view")
	meter  = otel.Meter("journalclub.discussion.thread_view")
)

var (
	viewLatency metric.Float64Histogram
	viewTotal   metric.Int64Counter
	sharedLoads metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		viewLatency, err = meter.Float64Histogram(
			"thread_view_duration_seconds",
			metric.WithDescription("Duration of thread load and rank"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		viewTotal, err = meter.Int64Counter(
			"thread_view_total",
			metric.WithDescription("Thread views by mode and result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sharedLoads, err = meter.Int64Counter(
			"thread_view_shared_loads_total",
			metric.WithDescription("Thread loads served from an in-flight load of the same thread"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// =============================================================================
// Interfaces
// =============================================================================

// ThreadLoader reads a consistent snapshot of one thread.
//
// ThreadVersion must change after every committed write to the thread's
// posts. Loads are only shared between callers that observed the same
// version.
type ThreadLoader interface {
	LoadThreadPosts(ctx context.Context, threadID string) (datatypes.Thread, []datatypes.PostRecord, error)
	ThreadVersion(threadID string) uint64
}

// IntegrityObserver is told about threads that fail structural validation.
type IntegrityObserver interface {
	RecordIntegrityError(kind string)
	RecordThreadSize(posts int)
}

// =============================================================================
// ThreadViewService
// =============================================================================

// ThreadViewService ranks a thread for display.
//
// Description:
//
//	Loads the thread snapshot, projects its records onto ranking posts,
//	ranks them and builds either an indent-mode item list or a plain list.
//	The master post is returned separately as Root and excluded from
//	Items and Posts. Concurrent loads of one thread at the same version
//	share a single store read; each caller ranks the shared snapshot
//	itself. A caller that starts after a write never joins a load that
//	began before it.
//
// Thread Safety: Safe for concurrent use.
type ThreadViewService struct {
	loader   ThreadLoader
	observer IntegrityObserver
	logger   *slog.Logger
	group    singleflight.Group
}

// NewThreadViewService wires a ThreadViewService. observer may be nil.
func NewThreadViewService(loader ThreadLoader, observer IntegrityObserver, logger *slog.Logger) *ThreadViewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreadViewService{
		loader:   loader,
		observer: observer,
		logger:   logger.With(slog.String("component", "thread_view")),
	}
}

type snapshot struct {
	thread datatypes.Thread
	posts  []datatypes.PostRecord
}

// View returns the ranked thread.
//
// Description:
//
//	On a structural-integrity failure View returns a response holding the
//	thread and mode with no items, together with the ranking error, so
//	callers can render an empty state with a diagnostic.
//
// Inputs:
//
//	ctx - Carries the trace span and cancellation.
//	threadID - Thread to render.
//	mode - ranking.ModeIndent or ranking.ModePlain.
//
// Outputs:
//
//	*datatypes.ThreadResponse - nil only when the thread could not be loaded.
//	error - Load errors from the ThreadLoader, or a ranking integrity error.
func (s *ThreadViewService) View(ctx context.Context, threadID string, mode ranking.Mode) (*datatypes.ThreadResponse, error) {
	ctx, span := tracer.Start(ctx, "ThreadViewService.View",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.String("thread.mode", string(mode)),
		),
	)
	defer span.End()
	start := time.Now()

	resp, err := s.view(ctx, threadID, mode, span)

	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if initMetrics() == nil {
		attrs := metric.WithAttributes(
			attribute.String("mode", string(mode)),
			attribute.String("result", result),
		)
		viewLatency.Record(ctx, time.Since(start).Seconds(), attrs)
		viewTotal.Add(ctx, 1, attrs)
	}
	return resp, err
}

func (s *ThreadViewService) view(ctx context.Context, threadID string, mode ranking.Mode, span trace.Span) (*datatypes.ThreadResponse, error) {
	snap, err := s.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("thread.posts", len(snap.posts)))

	resp := &datatypes.ThreadResponse{
		Thread: snap.thread,
		Mode:   mode,
		Items:  []datatypes.ThreadItem{},
	}

	input := make([]ranking.Post, len(snap.posts))
	records := make(map[string]*datatypes.PostRecord, len(snap.posts))
	for i := range snap.posts {
		input[i] = snap.posts[i].RankingPost()
		records[snap.posts[i].ID] = &snap.posts[i]
	}

	r, err := ranking.Rank(input)
	if err != nil {
		kind := ranking.IntegrityKind(err)
		s.logger.Error("thread failed integrity check",
			slog.String("thread_id", threadID),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		if s.observer != nil {
			s.observer.RecordIntegrityError(kind)
		}
		return resp, fmt.Errorf("rank thread %s: %w", threadID, err)
	}
	if s.observer != nil {
		s.observer.RecordThreadSize(r.Len())
	}

	viewOf := func(p ranking.Post) *datatypes.PostView {
		agg, _ := r.AggregateScore(p.ID)
		v := datatypes.NewPostView(records[p.ID], agg)
		return &v
	}
	resp.Root = viewOf(r.Tree().Root())

	switch mode {
	case ranking.ModePlain:
		ordered := r.Order()
		resp.Posts = make([]datatypes.PostView, 0, len(ordered)-1)
		for _, p := range ordered[1:] {
			resp.Posts = append(resp.Posts, *viewOf(p))
		}
	default:
		for _, it := range r.Replies() {
			var v *datatypes.PostView
			if it.Kind == ranking.KindNode {
				v = viewOf(it.Post)
			}
			resp.Items = append(resp.Items, datatypes.NewThreadItem(it, v))
		}
	}
	return resp, nil
}

// load reads the snapshot, sharing the read with concurrent callers for
// the same thread version. The shared read is detached from the first
// caller's cancellation so one departing client cannot fail the others.
// The shared snapshot is treated as read-only.
func (s *ThreadViewService) load(ctx context.Context, threadID string) (snapshot, error) {
	key := fmt.Sprintf("%s@%d", threadID, s.loader.ThreadVersion(threadID))
	loadCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		th, posts, err := s.loader.LoadThreadPosts(loadCtx, threadID)
		if err != nil {
			return snapshot{}, err
		}
		return snapshot{thread: th, posts: posts}, nil
	})
	if shared && initMetrics() == nil {
		sharedLoads.Add(ctx, 1)
	}
	if err != nil {
		return snapshot{}, err
	}
	snap, ok := v.(snapshot)
	if !ok {
		return snapshot{}, errors.New("unexpected snapshot type")
	}
	return snap, nil
}
