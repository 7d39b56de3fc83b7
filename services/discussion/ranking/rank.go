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
	"cmp"
	"slices"
)

// Ranking is a thread with aggregate scores computed and every child list
// sorted for display.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type Ranking struct {
	tree      *Tree
	aggregate []int
	sorted    [][]int
}

// Rank builds the reply tree of posts and ranks it.
//
// Description:
//
//	Runs Build, computes aggregate scores bottom-up, then sorts each
//	child list by aggregate score descending, Order ascending, snapshot
//	position ascending.
//
// Inputs:
//
//	posts - All posts of one thread. Not modified.
//
// Outputs:
//
//	*Ranking - The ranked thread.
//	error - Any error from Build.
func Rank(posts []Post) (*Ranking, error) {
	t, err := Build(posts)
	if err != nil {
		return nil, err
	}
	return RankTree(t), nil
}

// RankTree ranks an already built tree.
func RankTree(t *Tree) *Ranking {
	r := &Ranking{
		tree:      t,
		aggregate: make([]int, len(t.posts)),
		sorted:    make([][]int, len(t.posts)),
	}
	r.computeAggregate(t.root)
	for i, kids := range t.children {
		if len(kids) == 0 {
			continue
		}
		s := slices.Clone(kids)
		slices.SortStableFunc(s, r.compareSiblings)
		r.sorted[i] = s
	}
	return r
}

// computeAggregate fills r.aggregate for n's subtree in post-order and
// returns the value for n.
func (r *Ranking) computeAggregate(n int) int {
	best := r.tree.posts[n].Score
	for _, c := range r.tree.children[n] {
		best = max(best, r.computeAggregate(c))
	}
	r.aggregate[n] = best
	return best
}

func (r *Ranking) compareSiblings(a, b int) int {
	if c := cmp.Compare(r.aggregate[b], r.aggregate[a]); c != 0 {
		return c
	}
	return cmp.Compare(r.tree.posts[a].Order, r.tree.posts[b].Order)
}

// Tree returns the underlying reply tree.
func (r *Ranking) Tree() *Tree { return r.tree }

// Len returns the number of posts ranked.
func (r *Ranking) Len() int { return len(r.tree.posts) }

// AggregateScore returns the aggregate score of the post with the given ID.
func (r *Ranking) AggregateScore(id string) (int, bool) {
	i, ok := r.tree.index[id]
	if !ok {
		return 0, false
	}
	return r.aggregate[i], true
}

// Order returns every post once, root first, in display order.
func (r *Ranking) Order() []Post {
	out := make([]Post, 0, len(r.tree.posts))
	r.walk(r.tree.root, func(n int) {
		out = append(out, r.tree.posts[n])
	}, nil)
	return out
}

// Flatten returns the display order with every subtree, the root's
// included, bracketed by Indent(depth) and Dedent(depth).
//
// For N posts the result holds exactly 3N items.
func (r *Ranking) Flatten() []Item {
	out := make([]Item, 0, 3*len(r.tree.posts))
	r.walk(r.tree.root, func(n int) {
		p := r.tree.posts[n]
		out = append(out, Indent(p.Depth), Node(p, r.aggregate[n]))
	}, func(n int) {
		out = append(out, Dedent(r.tree.posts[n].Depth))
	})
	return out
}

// Replies returns Flatten without the root's own indent, node and dedent.
// The root is a placeholder in most threads and is rendered separately,
// if at all.
func (r *Ranking) Replies() []Item {
	all := r.Flatten()
	return all[2 : len(all)-1]
}

// walk visits n's subtree in ranked pre-order. enter runs before a node's
// children, leave after them. leave may be nil.
func (r *Ranking) walk(n int, enter, leave func(int)) {
	enter(n)
	for _, c := range r.sorted[n] {
		r.walk(c, enter, leave)
	}
	if leave != nil {
		leave(n)
	}
}
