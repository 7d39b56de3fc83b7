// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/journalclub/services/discussion/datatypes"
	"github.com/AleutianAI/journalclub/services/discussion/ranking"
	bstore "github.com/AleutianAI/journalclub/services/discussion/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store over an in-memory database with a clock
// that advances one second per call.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := bstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var mu sync.Mutex
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(db, nil, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}))
}

// seedThread creates a citation with one thread and returns both.
func seedThread(t *testing.T, s *Store) (datatypes.Citation, datatypes.Thread) {
	t.Helper()
	ctx := context.Background()
	c, err := s.CreateCitation(ctx, datatypes.CreateCitationRequest{Title: "  my citation ", Author: "Chiang M"})
	require.NoError(t, err)
	th, err := s.CreateThread(ctx, c.ID, datatypes.CreateThreadRequest{Description: "my thread", CreatorID: "user1"})
	require.NoError(t, err)
	return c, th
}

func reply(t *testing.T, s *Store, threadID, parentID, creator string) datatypes.PostRecord {
	t.Helper()
	p, err := s.CreatePost(context.Background(), threadID, datatypes.CreatePostRequest{
		ParentID:  parentID,
		CreatorID: creator,
		Text:      creator + " says hi",
	})
	require.NoError(t, err)
	return p
}

// =============================================================================
// Citations
// =============================================================================

func TestCitations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateCitation(ctx, datatypes.CreateCitationRequest{
		Title:      "  first ",
		Date:       "2015 Mar",
		FullSource: " science(1),3-4,2015 ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "first", a.Title)

	b, err := s.CreateCitation(ctx, datatypes.CreateCitationRequest{Title: "second"})
	require.NoError(t, err)

	got, err := s.GetCitation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, "2015 Mar", got.Date)
	assert.Equal(t, "science(1),3-4,2015", got.FullSource)

	list, err := s.ListCitations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	_, err = s.GetCitation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Threads
// =============================================================================

func TestCreateThread_CreatesMasterPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c, th := seedThread(t, s)

	assert.Equal(t, c.ID, th.CitationID)
	assert.Equal(t, 1, th.PostCount)
	require.NotEmpty(t, th.RootPostID)

	root, err := s.GetPost(ctx, th.RootPostID)
	require.NoError(t, err)
	assert.True(t, root.IsMaster())
	assert.Equal(t, datatypes.MasterPostText, root.Text())
	assert.Equal(t, 0, root.Order)
	assert.Empty(t, root.ParentID)

	threads, err := s.ListThreads(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, th.ID, threads[0].ID)
}

func TestCreateThread_UnknownCitation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateThread(context.Background(), "nope", datatypes.CreateThreadRequest{Description: "d", CreatorID: "u"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ListThreads(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetThread(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Posts
// =============================================================================

func TestCreatePost_DepthAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, th := seedThread(t, s)

	p1 := reply(t, s, th.ID, "", "user1")
	p2 := reply(t, s, th.ID, "", "user2")
	p3 := reply(t, s, th.ID, p1.ID, "user2")

	assert.Equal(t, th.RootPostID, p1.ParentID)
	assert.Equal(t, 1, p1.Depth)
	assert.Equal(t, 1, p2.Depth)
	assert.Equal(t, 2, p3.Depth)
	assert.Equal(t, []int{1, 2, 3}, []int{p1.Order, p2.Order, p3.Order})

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.PostCount)
}

func TestCreatePost_InvalidParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c, th := seedThread(t, s)
	other, err := s.CreateThread(ctx, c.ID, datatypes.CreateThreadRequest{Description: "other", CreatorID: "u"})
	require.NoError(t, err)
	foreign := reply(t, s, other.ID, "", "user1")

	_, err = s.CreatePost(ctx, th.ID, datatypes.CreatePostRequest{ParentID: foreign.ID, CreatorID: "u", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidParent)

	_, err = s.CreatePost(ctx, th.ID, datatypes.CreatePostRequest{ParentID: "ghost", CreatorID: "u", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidParent)

	_, err = s.CreatePost(ctx, "no-thread", datatypes.CreatePostRequest{CreatorID: "u", Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, th := seedThread(t, s)
	p := reply(t, s, th.ID, "", "user1")

	_, err := s.EditPost(ctx, p.ID, datatypes.EditPostRequest{CreatorID: "user2", Text: "hijack"})
	assert.ErrorIs(t, err, ErrForbidden)

	edited, err := s.EditPost(ctx, p.ID, datatypes.EditPostRequest{CreatorID: "user1", Text: "fixed typo"})
	require.NoError(t, err)
	assert.Equal(t, "fixed typo", edited.Text())
	assert.True(t, edited.Edited())

	revs, err := s.Revisions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "user1 says hi", revs[0].Text)
	assert.Equal(t, "fixed typo", revs[1].Text)
	assert.True(t, revs[1].EditedAt.After(revs[0].EditedAt))

	_, err = s.EditPost(ctx, th.RootPostID, datatypes.EditPostRequest{CreatorID: "user1", Text: "x"})
	assert.ErrorIs(t, err, ErrMasterPost)

	_, err = s.Revisions(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, th := seedThread(t, s)
	p := reply(t, s, th.ID, "", "user1")

	_, err := s.DeletePost(ctx, p.ID, "user2")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.DeletePost(ctx, th.RootPostID, "user1")
	assert.ErrorIs(t, err, ErrMasterPost)

	deleted, err := s.DeletePost(ctx, p.ID, "user1")
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, ranking.DeletedScore, deleted.Score())

	again, err := s.DeletePost(ctx, p.ID, "user1")
	require.NoError(t, err)
	assert.True(t, again.Deleted)

	_, err = s.EditPost(ctx, p.ID, datatypes.EditPostRequest{CreatorID: "user1", Text: "x"})
	assert.ErrorIs(t, err, ErrPostDeleted)

	_, err = s.Upvote(ctx, p.ID, "user2")
	assert.ErrorIs(t, err, ErrPostDeleted)
}

func TestVotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, th := seedThread(t, s)
	p := reply(t, s, th.ID, "", "user1")

	got, err := s.Upvote(ctx, p.ID, "user2")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Score())

	got, err = s.Downvote(ctx, p.ID, "user2")
	require.NoError(t, err)
	assert.Equal(t, -1, got.Score())

	got, err = s.Downvote(ctx, p.ID, "user2")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Score())

	_, err = s.Upvote(ctx, th.RootPostID, "user2")
	assert.ErrorIs(t, err, ErrMasterPost)

	_, err = s.Downvote(ctx, "ghost", "user2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThreadVersion_ChangesOnCommittedWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, th := seedThread(t, s)
	_, other := seedThread(t, s)

	v0 := s.ThreadVersion(th.ID)
	p := reply(t, s, th.ID, "", "user1")
	v1 := s.ThreadVersion(th.ID)
	assert.Greater(t, v1, v0)

	_, err := s.Upvote(ctx, p.ID, "user2")
	require.NoError(t, err)
	v2 := s.ThreadVersion(th.ID)
	assert.Greater(t, v2, v1)

	// Rejected writes leave the version alone.
	_, err = s.Upvote(ctx, th.RootPostID, "user2")
	require.ErrorIs(t, err, ErrMasterPost)
	_, err = s.EditPost(ctx, p.ID, datatypes.EditPostRequest{CreatorID: "intruder", Text: "x"})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, v2, s.ThreadVersion(th.ID))

	assert.Equal(t, uint64(0), s.ThreadVersion(other.ID))
}

func TestVotes_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, th := seedThread(t, s)
	p := reply(t, s, th.ID, "", "user1")

	const voters = 10
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upvote(ctx, p.ID, fmt.Sprintf("voter-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, voters, got.Score())
}

// =============================================================================
// Snapshots
// =============================================================================

func TestLoadThreadPosts_RanksLikeTheVotedThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, th := seedThread(t, s)

	user1Post := reply(t, s, th.ID, "", "user1")
	user2Post := reply(t, s, th.ID, "", "user2")
	user2Reply := reply(t, s, th.ID, user1Post.ID, "user2")

	_, err := s.Downvote(ctx, user1Post.ID, "user2")
	require.NoError(t, err)
	_, err = s.Upvote(ctx, user2Reply.ID, "user1")
	require.NoError(t, err)

	gotThread, posts, err := s.LoadThreadPosts(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, th.ID, gotThread.ID)
	require.Len(t, posts, 4)
	for i, p := range posts {
		assert.Equal(t, i, p.Order, "snapshot is in creation order")
	}

	input := make([]ranking.Post, len(posts))
	for i := range posts {
		input[i] = posts[i].RankingPost()
	}
	r, err := ranking.Rank(input)
	require.NoError(t, err)

	var order []string
	for _, p := range r.Order() {
		order = append(order, p.ID)
	}
	assert.Equal(t, []string{th.RootPostID, user1Post.ID, user2Reply.ID, user2Post.ID}, order)

	_, _, err = s.LoadThreadPosts(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
