// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ranking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(posts []Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestBuild_LinksChildrenInSnapshotOrder(t *testing.T) {
	posts := []Post{
		{ID: "b", ParentID: "root", Depth: 1},
		{ID: "root", Depth: 0},
		{ID: "b1", ParentID: "b", Depth: 2},
		{ID: "a", ParentID: "root", Depth: 1},
		{ID: "b2", ParentID: "b", Depth: 2},
	}

	tree, err := Build(posts)
	require.NoError(t, err)

	assert.Equal(t, 5, tree.Len())
	assert.Equal(t, "root", tree.Root().ID)
	assert.Equal(t, []string{"b", "a"}, ids(tree.Children("root")))
	assert.Equal(t, []string{"b1", "b2"}, ids(tree.Children("b")))
	assert.Nil(t, tree.Children("a"))
	assert.Nil(t, tree.Children("missing"))

	p, ok := tree.Post("b2")
	require.True(t, ok)
	assert.Equal(t, 2, p.Depth)
	_, ok = tree.Post("nope")
	assert.False(t, ok)
}

func TestBuild_SingleRoot(t *testing.T) {
	tree, err := Build([]Post{{ID: "only"}})
	require.NoError(t, err)
	assert.Equal(t, "only", tree.Root().ID)
	assert.Equal(t, 1, tree.Len())
}

func TestBuild_DoesNotModifyInput(t *testing.T) {
	posts := []Post{
		{ID: "root"},
		{ID: "x", ParentID: "root", Depth: 1, Score: 3},
		{ID: "y", ParentID: "root", Depth: 1, Score: 9},
	}
	snapshot := append([]Post(nil), posts...)

	_, err := Rank(posts)
	require.NoError(t, err)
	assert.Equal(t, snapshot, posts)
}

func TestBuild_IntegrityErrors(t *testing.T) {
	tests := []struct {
		name     string
		posts    []Post
		sentinel error
		check    func(t *testing.T, err error)
	}{
		{
			name:     "empty snapshot",
			posts:    nil,
			sentinel: ErrMissingRoot,
		},
		{
			name: "no depth zero post",
			posts: []Post{
				{ID: "a", ParentID: "x", Depth: 1},
			},
			sentinel: ErrMissingRoot,
		},
		{
			name: "two roots",
			posts: []Post{
				{ID: "r1"},
				{ID: "a", ParentID: "r1", Depth: 1},
				{ID: "r2"},
			},
			sentinel: ErrMultipleRoots,
			check: func(t *testing.T, err error) {
				var mr *MultipleRootsError
				require.True(t, errors.As(err, &mr))
				assert.Equal(t, []string{"r1", "r2"}, mr.PostIDs)
			},
		},
		{
			name: "parent not in snapshot",
			posts: []Post{
				{ID: "root"},
				{ID: "a", ParentID: "gone", Depth: 1},
			},
			sentinel: ErrOrphanPost,
			check: func(t *testing.T, err error) {
				var op *OrphanPostError
				require.True(t, errors.As(err, &op))
				assert.Equal(t, "a", op.PostID)
				assert.Equal(t, "gone", op.ParentID)
				assert.Contains(t, err.Error(), `"gone"`)
			},
		},
		{
			name: "reply without parent",
			posts: []Post{
				{ID: "root"},
				{ID: "a", Depth: 1},
			},
			sentinel: ErrOrphanPost,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "no parent")
			},
		},
		{
			name: "duplicate id",
			posts: []Post{
				{ID: "root"},
				{ID: "a", ParentID: "root", Depth: 1},
				{ID: "a", ParentID: "root", Depth: 1},
			},
			sentinel: ErrDuplicatePost,
		},
		{
			name: "parent cycle detached from root",
			posts: []Post{
				{ID: "root"},
				{ID: "a", ParentID: "root", Depth: 1},
				{ID: "x", ParentID: "y", Depth: 2},
				{ID: "y", ParentID: "x", Depth: 3},
				{ID: "z", ParentID: "y", Depth: 4},
			},
			sentinel: ErrCycle,
			check: func(t *testing.T, err error) {
				var ce *CycleError
				require.True(t, errors.As(err, &ce))
				assert.ElementsMatch(t, []string{"x", "y", "z"}, ce.PostIDs)
			},
		},
		{
			name: "self parent",
			posts: []Post{
				{ID: "root"},
				{ID: "s", ParentID: "s", Depth: 1},
			},
			sentinel: ErrCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Build(tt.posts)
			require.Error(t, err)
			assert.Nil(t, tree)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, IsIntegrityError(err))
			if tt.check != nil {
				tt.check(t, err)
			}

			_, rankErr := Rank(tt.posts)
			assert.ErrorIs(t, rankErr, tt.sentinel)
		})
	}
}

func TestIntegrityKind(t *testing.T) {
	assert.Equal(t, "missing_root", IntegrityKind(ErrMissingRoot))
	assert.Equal(t, "multiple_roots", IntegrityKind(&MultipleRootsError{}))
	assert.Equal(t, "orphan_post", IntegrityKind(&OrphanPostError{PostID: "a"}))
	assert.Equal(t, "duplicate_post", IntegrityKind(&DuplicatePostError{PostID: "a"}))
	assert.Equal(t, "cycle", IntegrityKind(&CycleError{}))
	assert.Equal(t, "unknown", IntegrityKind(errors.New("disk on fire")))
	assert.False(t, IsIntegrityError(errors.New("disk on fire")))
}
