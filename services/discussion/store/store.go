// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists citations, threads and posts in BadgerDB.
//
// Key layout (values are JSON):
//
//	citation/<citationID>                   Citation
//	thread/<threadID>                       Thread
//	citation_thread/<citationID>/<threadID> thread ID
//	post/<threadID>/<postID>                PostRecord
//	postref/<postID>                        thread ID
//
// Posts are grouped under their thread so a whole thread is one prefix scan
// inside one read transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/journalclub/services/discussion/datatypes"
	bstore "github.com/AleutianAI/journalclub/services/discussion/storage/badger"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNotFound is returned when a citation, thread or post does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a user edits or deletes a post they
	// did not create.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidParent is returned when a reply names a parent that is not
	// a post of the same thread.
	ErrInvalidParent = errors.New("invalid parent post")

	// ErrPostDeleted is returned when editing or voting on a deleted post.
	ErrPostDeleted = errors.New("post is deleted")

	// ErrMasterPost is returned when editing, deleting or voting on a
	// thread's placeholder root.
	ErrMasterPost = errors.New("operation not allowed on master post")
)

// =============================================================================
// Keys
// =============================================================================

func citationKey(id string) string { return "citation/" + id }
func threadKey(id string) string   { return "thread/" + id }
func postRefKey(id string) string  { return "postref/" + id }

func citationThreadKey(citationID, threadID string) string {
	return "citation_thread/" + citationID + "/" + threadID
}

func postKey(threadID, postID string) string {
	return "post/" + threadID + "/" + postID
}

func postPrefix(threadID string) string { return "post/" + threadID + "/" }

// =============================================================================
// Store
// =============================================================================

// Store is the discussion data layer.
//
// Thread Safety: Safe for concurrent use. Read-modify-write operations run
// in badger transactions that retry on conflict.
type Store struct {
	db     *bstore.DB
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	// versions maps thread ID to *atomic.Uint64, bumped after every
	// committed post write in that thread.
	versions sync.Map
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns a Store over db. A nil logger uses slog.Default().
func New(db *bstore.DB, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notFound maps the storage miss onto ErrNotFound with context.
func notFound(err error, what, id string) error {
	if errors.Is(err, bstore.ErrKeyNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}

// =============================================================================
// Citations
// =============================================================================

// CreateCitation stores a new citation built from req.
func (s *Store) CreateCitation(ctx context.Context, req datatypes.CreateCitationRequest) (datatypes.Citation, error) {
	c := datatypes.Citation{
		ID:              s.newID(),
		Title:           strings.TrimSpace(req.Title),
		Author:          req.Author,
		FullAuthorNames: req.FullAuthorNames,
		Journal:         req.Journal,
		Volume:          req.Volume,
		Number:          req.Number,
		Pages:           req.Pages,
		Date:            req.Date,
		FullSource:      strings.TrimSpace(req.FullSource),
		Publisher:       req.Publisher,
		Keywords:        req.Keywords,
		Abstract:        req.Abstract,
		DOI:             req.DOI,
		PubmedID:        req.PubmedID,
		CreatedAt:       s.now(),
	}
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return bstore.SetJSON(txn, citationKey(c.ID), c)
	})
	if err != nil {
		return datatypes.Citation{}, fmt.Errorf("create citation: %w", err)
	}
	s.logger.Info("citation created", slog.String("citation_id", c.ID))
	return c, nil
}

// GetCitation returns the citation with the given ID.
func (s *Store) GetCitation(ctx context.Context, id string) (datatypes.Citation, error) {
	var c datatypes.Citation
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return bstore.GetJSON(txn, citationKey(id), &c)
	})
	if err != nil {
		return datatypes.Citation{}, notFound(err, "citation", id)
	}
	return c, nil
}

// ListCitations returns all citations, oldest first.
func (s *Store) ListCitations(ctx context.Context) ([]datatypes.Citation, error) {
	var out []datatypes.Citation
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return bstore.ScanPrefix(txn, "citation/", func(key string, val []byte) error {
			var c datatypes.Citation
			if err := bstore.DecodeJSON(key, val, &c); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	slices.SortStableFunc(out, func(a, b datatypes.Citation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// =============================================================================
// Threads
// =============================================================================

// CreateThread creates a thread on a citation together with its master
// post, the depth-0 root every reply descends from.
//
// Description:
//
//	The master post carries MasterPostText, Order 0, and is owned by the
//	thread creator. The thread's PostCount starts at 1.
//
// Outputs:
//
//	datatypes.Thread - The stored thread, RootPostID set.
//	error - ErrNotFound if the citation does not exist.
func (s *Store) CreateThread(ctx context.Context, citationID string, req datatypes.CreateThreadRequest) (datatypes.Thread, error) {
	now := s.now()
	th := datatypes.Thread{
		ID:          s.newID(),
		CitationID:  citationID,
		Description: strings.TrimSpace(req.Description),
		CreatorID:   req.CreatorID,
		PostCount:   1,
		CreatedAt:   now,
	}
	master := datatypes.PostRecord{
		ID:        s.newID(),
		ThreadID:  th.ID,
		Depth:     0,
		Order:     0,
		CreatorID: req.CreatorID,
		Revisions: []datatypes.Revision{{Text: datatypes.MasterPostText, EditedAt: now}},
		CreatedAt: now,
	}
	th.RootPostID = master.ID

	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var c datatypes.Citation
		if err := bstore.GetJSON(txn, citationKey(citationID), &c); err != nil {
			return notFound(err, "citation", citationID)
		}
		if err := bstore.SetJSON(txn, threadKey(th.ID), th); err != nil {
			return err
		}
		if err := bstore.SetJSON(txn, citationThreadKey(citationID, th.ID), th.ID); err != nil {
			return err
		}
		if err := bstore.SetJSON(txn, postKey(th.ID, master.ID), master); err != nil {
			return err
		}
		return bstore.SetJSON(txn, postRefKey(master.ID), th.ID)
	})
	if err != nil {
		return datatypes.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	s.logger.Info("thread created",
		slog.String("thread_id", th.ID),
		slog.String("citation_id", citationID))
	return th, nil
}

// GetThread returns the thread with the given ID.
func (s *Store) GetThread(ctx context.Context, id string) (datatypes.Thread, error) {
	var th datatypes.Thread
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return bstore.GetJSON(txn, threadKey(id), &th)
	})
	if err != nil {
		return datatypes.Thread{}, notFound(err, "thread", id)
	}
	return th, nil
}

// ListThreads returns the threads of a citation, oldest first.
func (s *Store) ListThreads(ctx context.Context, citationID string) ([]datatypes.Thread, error) {
	var out []datatypes.Thread
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var c datatypes.Citation
		if err := bstore.GetJSON(txn, citationKey(citationID), &c); err != nil {
			return notFound(err, "citation", citationID)
		}
		var threadIDs []string
		err := bstore.ScanPrefix(txn, "citation_thread/"+citationID+"/", func(key string, val []byte) error {
			var threadID string
			if err := bstore.DecodeJSON(key, val, &threadID); err != nil {
				return err
			}
			threadIDs = append(threadIDs, threadID)
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range threadIDs {
			var th datatypes.Thread
			if err := bstore.GetJSON(txn, threadKey(id), &th); err != nil {
				return notFound(err, "thread", id)
			}
			out = append(out, th)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	slices.SortStableFunc(out, func(a, b datatypes.Thread) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// LoadThreadPosts returns a thread and all of its posts, read in a single
// transaction so the snapshot is consistent. Posts are in creation order.
func (s *Store) LoadThreadPosts(ctx context.Context, threadID string) (datatypes.Thread, []datatypes.PostRecord, error) {
	var (
		th    datatypes.Thread
		posts []datatypes.PostRecord
	)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if err := bstore.GetJSON(txn, threadKey(threadID), &th); err != nil {
			return notFound(err, "thread", threadID)
		}
		return bstore.ScanPrefix(txn, postPrefix(threadID), func(key string, val []byte) error {
			var p datatypes.PostRecord
			if err := bstore.DecodeJSON(key, val, &p); err != nil {
				return err
			}
			posts = append(posts, p)
			return nil
		})
	})
	if err != nil {
		return datatypes.Thread{}, nil, fmt.Errorf("load thread posts: %w", err)
	}
	slices.SortStableFunc(posts, func(a, b datatypes.PostRecord) int {
		return a.Order - b.Order
	})
	return th, posts, nil
}

// =============================================================================
// Posts
// =============================================================================

// CreatePost adds a reply to a thread.
//
// Description:
//
//	An empty req.ParentID replies to the thread's master post. The new
//	post's depth is the parent's plus one, and its Order is the thread's
//	PostCount, which is then incremented.
//
// Outputs:
//
//	datatypes.PostRecord - The stored post.
//	error - ErrNotFound for an unknown thread, ErrInvalidParent when the
//	parent is not a post of this thread.
func (s *Store) CreatePost(ctx context.Context, threadID string, req datatypes.CreatePostRequest) (datatypes.PostRecord, error) {
	var post datatypes.PostRecord
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var th datatypes.Thread
		if err := bstore.GetJSON(txn, threadKey(threadID), &th); err != nil {
			return notFound(err, "thread", threadID)
		}
		parentID := req.ParentID
		if parentID == "" {
			parentID = th.RootPostID
		}
		var parent datatypes.PostRecord
		if err := bstore.GetJSON(txn, postKey(threadID, parentID), &parent); err != nil {
			if errors.Is(err, bstore.ErrKeyNotFound) {
				return fmt.Errorf("parent %s in thread %s: %w", parentID, threadID, ErrInvalidParent)
			}
			return err
		}

		now := s.now()
		post = datatypes.PostRecord{
			ID:        s.newID(),
			ThreadID:  threadID,
			ParentID:  parent.ID,
			Depth:     parent.Depth + 1,
			Order:     th.PostCount,
			CreatorID: req.CreatorID,
			Revisions: []datatypes.Revision{{Text: req.Text, EditedAt: now}},
			CreatedAt: now,
		}
		th.PostCount++

		if err := bstore.SetJSON(txn, threadKey(threadID), th); err != nil {
			return err
		}
		if err := bstore.SetJSON(txn, postKey(threadID, post.ID), post); err != nil {
			return err
		}
		return bstore.SetJSON(txn, postRefKey(post.ID), threadID)
	})
	if err != nil {
		return datatypes.PostRecord{}, fmt.Errorf("create post: %w", err)
	}
	s.bumpVersion(threadID)
	s.logger.Debug("post created",
		slog.String("thread_id", threadID),
		slog.String("post_id", post.ID),
		slog.Int("depth", post.Depth))
	return post, nil
}

// GetPost returns the post with the given ID.
func (s *Store) GetPost(ctx context.Context, postID string) (datatypes.PostRecord, error) {
	var p datatypes.PostRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		p, err = readPost(txn, postID)
		return err
	})
	if err != nil {
		return datatypes.PostRecord{}, err
	}
	return p, nil
}

// Revisions returns a post's edit history, oldest first.
func (s *Store) Revisions(ctx context.Context, postID string) ([]datatypes.Revision, error) {
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return p.Revisions, nil
}

// EditPost appends a revision. Only the creator may edit, and neither
// the master post nor a deleted post can be edited.
func (s *Store) EditPost(ctx context.Context, postID string, req datatypes.EditPostRequest) (datatypes.PostRecord, error) {
	return s.mutatePost(ctx, postID, func(p *datatypes.PostRecord) error {
		switch {
		case p.IsMaster():
			return ErrMasterPost
		case p.CreatorID != req.CreatorID:
			return ErrForbidden
		case p.Deleted:
			return ErrPostDeleted
		}
		p.Revisions = append(p.Revisions, datatypes.Revision{Text: req.Text, EditedAt: s.now()})
		return nil
	})
}

// DeletePost soft-deletes a post. The post keeps its place in the tree
// and its replies stay visible. Deleting twice is a no-op.
func (s *Store) DeletePost(ctx context.Context, postID, creatorID string) (datatypes.PostRecord, error) {
	return s.mutatePost(ctx, postID, func(p *datatypes.PostRecord) error {
		switch {
		case p.IsMaster():
			return ErrMasterPost
		case p.CreatorID != creatorID:
			return ErrForbidden
		}
		p.Deleted = true
		return nil
	})
}

// Upvote toggles voterID's upvote on a post.
func (s *Store) Upvote(ctx context.Context, postID, voterID string) (datatypes.PostRecord, error) {
	return s.mutatePost(ctx, postID, func(p *datatypes.PostRecord) error {
		if err := votable(p); err != nil {
			return err
		}
		p.ToggleUpvote(voterID)
		return nil
	})
}

// Downvote toggles voterID's downvote on a post.
func (s *Store) Downvote(ctx context.Context, postID, voterID string) (datatypes.PostRecord, error) {
	return s.mutatePost(ctx, postID, func(p *datatypes.PostRecord) error {
		if err := votable(p); err != nil {
			return err
		}
		p.ToggleDownvote(voterID)
		return nil
	})
}

func votable(p *datatypes.PostRecord) error {
	if p.IsMaster() {
		return ErrMasterPost
	}
	if p.Deleted {
		return ErrPostDeleted
	}
	return nil
}

// mutatePost loads a post, applies fn and writes it back in one
// transaction. fn must only touch p.
func (s *Store) mutatePost(ctx context.Context, postID string, fn func(p *datatypes.PostRecord) error) (datatypes.PostRecord, error) {
	var p datatypes.PostRecord
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var err error
		p, err = readPost(txn, postID)
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return fmt.Errorf("post %s: %w", postID, err)
		}
		return bstore.SetJSON(txn, postKey(p.ThreadID, p.ID), p)
	})
	if err != nil {
		return datatypes.PostRecord{}, err
	}
	s.bumpVersion(p.ThreadID)
	return p, nil
}

// ThreadVersion returns a counter that changes after every committed post
// write in the thread. Readers that key cached or shared loads on it never
// see a snapshot older than a write that completed before they asked.
func (s *Store) ThreadVersion(threadID string) uint64 {
	v, ok := s.versions.Load(threadID)
	if !ok {
		return 0
	}
	return v.(*atomic.Uint64).Load()
}

func (s *Store) bumpVersion(threadID string) {
	v, _ := s.versions.LoadOrStore(threadID, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
}

// readPost resolves a post through its postref entry.
func readPost(txn *badger.Txn, postID string) (datatypes.PostRecord, error) {
	var threadID string
	if err := bstore.GetJSON(txn, postRefKey(postID), &threadID); err != nil {
		return datatypes.PostRecord{}, notFound(err, "post", postID)
	}
	var p datatypes.PostRecord
	if err := bstore.GetJSON(txn, postKey(threadID, postID), &p); err != nil {
		return datatypes.PostRecord{}, notFound(err, "post", postID)
	}
	return p, nil
}
