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

// Tree is the reply structure of one thread snapshot.
//
// Posts are addressed by their position in the snapshot. Children lists
// keep snapshot order; ranking reorders copies, never the Tree itself.
//
// Thread Safety: Safe for concurrent reads after Build returns.
type Tree struct {
	posts    []Post
	children [][]int
	index    map[string]int
	root     int
}

// Build reconstructs the reply tree of a thread snapshot.
//
// Description:
//
//	Indexes posts by ID, links every non-root post to its parent and
//	locates the single depth-0 root. Siblings keep the order in which
//	they appear in posts. A final walk from the root confirms that every
//	post is reachable.
//
// Inputs:
//
//	posts - All posts of one thread, in any order. Not modified.
//
// Outputs:
//
//	*Tree - The reply tree.
//	error - Wraps ErrMissingRoot, ErrMultipleRoots, ErrDuplicatePost,
//	        ErrOrphanPost or ErrCycle when the snapshot is malformed.
func Build(posts []Post) (*Tree, error) {
	t := &Tree{
		posts:    posts,
		children: make([][]int, len(posts)),
		index:    make(map[string]int, len(posts)),
		root:     -1,
	}

	var roots []string
	for i, p := range posts {
		if _, dup := t.index[p.ID]; dup {
			return nil, &DuplicatePostError{PostID: p.ID}
		}
		t.index[p.ID] = i
		if p.IsRoot() {
			roots = append(roots, p.ID)
			if t.root < 0 {
				t.root = i
			}
		}
	}

	switch {
	case len(roots) == 0:
		return nil, ErrMissingRoot
	case len(roots) > 1:
		return nil, &MultipleRootsError{PostIDs: roots}
	}

	for i, p := range posts {
		if i == t.root {
			continue
		}
		if p.ParentID == "" {
			return nil, &OrphanPostError{PostID: p.ID}
		}
		parent, ok := t.index[p.ParentID]
		if !ok {
			return nil, &OrphanPostError{PostID: p.ID, ParentID: p.ParentID}
		}
		t.children[parent] = append(t.children[parent], i)
	}

	if err := t.checkReachable(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkReachable walks the tree from the root. Each non-root post has
// exactly one incoming edge, so any post left unvisited sits on or below a
// parent cycle.
func (t *Tree) checkReachable() error {
	seen := make([]bool, len(t.posts))
	stack := []int{t.root}
	visited := 0
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		visited++
		stack = append(stack, t.children[n]...)
	}
	if visited == len(t.posts) {
		return nil
	}

	var lost []string
	for i, ok := range seen {
		if !ok {
			lost = append(lost, t.posts[i].ID)
		}
	}
	return &CycleError{PostIDs: lost}
}

// Len returns the number of posts in the tree.
func (t *Tree) Len() int { return len(t.posts) }

// Root returns the root post.
func (t *Tree) Root() Post { return t.posts[t.root] }

// Post returns the post with the given ID.
func (t *Tree) Post(id string) (Post, bool) {
	i, ok := t.index[id]
	if !ok {
		return Post{}, false
	}
	return t.posts[i], true
}

// Children returns the direct replies to id in snapshot order.
// Returns nil for unknown IDs and leaves.
func (t *Tree) Children(id string) []Post {
	i, ok := t.index[id]
	if !ok || len(t.children[i]) == 0 {
		return nil
	}
	out := make([]Post, len(t.children[i]))
	for k, c := range t.children[i] {
		out[k] = t.posts[c]
	}
	return out
}
