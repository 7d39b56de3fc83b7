// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ranking orders a discussion thread for display.
//
// A thread arrives as a flat, unordered snapshot of posts. Each post names
// its parent, its depth and its net vote score. The package rebuilds the
// reply tree, computes an aggregate score for every subtree and flattens
// the tree depth-first so that, at every level, the branch holding the best
// post anywhere inside it is shown first.
//
// # Aggregate Score
//
// The aggregate score of a post is the maximum raw score found in its own
// subtree, the post included. A well-received reply deep in a branch pulls
// the whole branch up relative to its siblings:
//
//	root
//	├── A  score -1  aggregate  1
//	│   └── C  score 1   aggregate 1
//	└── B  score  0  aggregate  0
//
//	order: root, A, C, B
//
// # Ordering
//
// Siblings are sorted by aggregate score, descending. Equal aggregates keep
// the caller-supplied Order index ascending, and equal Order values keep
// their snapshot position.
//
// # Output
//
// Ranking.Order returns the posts in display order. Ranking.Flatten returns
// the same order bracketed with Indent and Dedent markers around every
// subtree, which a renderer maps to nested markup.
//
// # Thread Safety
//
// Everything here is a pure function of its input. A Ranking is immutable
// after Rank returns and may be read from multiple goroutines.
package ranking

import "fmt"

// DeletedScore is the score reported for deleted posts. It is low enough
// that a deleted post sorts after every live sibling while staying in the
// tree so its replies remain visible.
const DeletedScore = -1_000_000_000

// Post is one entry of a thread snapshot.
type Post struct {
	// ID uniquely identifies the post within the snapshot.
	ID string `json:"id" yaml:"id"`

	// ParentID is the ID of the post being replied to. Empty for the root.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// Depth is 0 for the root and parent depth + 1 otherwise.
	// The value is trusted as given.
	Depth int `json:"depth" yaml:"depth"`

	// Score is the net vote count, or DeletedScore.
	Score int `json:"score" yaml:"score"`

	// Order is a stable creation index used to break score ties.
	Order int `json:"order" yaml:"order"`
}

// IsRoot reports whether the post anchors its thread.
func (p Post) IsRoot() bool {
	return p.Depth == 0
}

// ItemKind discriminates the variants of Item.
type ItemKind uint8

const (
	// KindNode carries a post.
	KindNode ItemKind = iota + 1

	// KindIndent opens the subtree of the post that follows it.
	KindIndent

	// KindDedent closes the subtree opened by the matching KindIndent.
	KindDedent
)

// String returns the JSON-facing name of the kind.
func (k ItemKind) String() string {
	switch k {
	case KindNode:
		return "post"
	case KindIndent:
		return "indent"
	case KindDedent:
		return "dedent"
	default:
		return "unknown"
	}
}

// Item is one element of a flattened thread: either a post or a structural
// marker. Depth is always set; Post and Aggregate only for KindNode.
type Item struct {
	Kind      ItemKind
	Depth     int
	Post      Post
	Aggregate int
}

// Indent returns an opening marker at depth.
func Indent(depth int) Item {
	return Item{Kind: KindIndent, Depth: depth}
}

// Dedent returns a closing marker at depth.
func Dedent(depth int) Item {
	return Item{Kind: KindDedent, Depth: depth}
}

// Node returns a post item carrying its aggregate score.
func Node(p Post, aggregate int) Item {
	return Item{Kind: KindNode, Depth: p.Depth, Post: p, Aggregate: aggregate}
}

// IsIndent reports whether the item opens a subtree.
func (it Item) IsIndent() bool { return it.Kind == KindIndent }

// IsDedent reports whether the item closes a subtree.
func (it Item) IsDedent() bool { return it.Kind == KindDedent }

// IsMarker reports whether the item is structural rather than a post.
func (it Item) IsMarker() bool { return it.IsIndent() || it.IsDedent() }

// EvenDepth reports whether the item sits at an even depth. Renderers use
// it to alternate the shading of nested replies.
func (it Item) EvenDepth() bool { return it.Depth%2 == 0 }

// TopLevel reports whether the item sits directly under the root.
func (it Item) TopLevel() bool { return it.Depth == 1 }

// String renders markers in the legacy "in-<depth>" / "out-<depth>" form
// and posts by ID.
func (it Item) String() string {
	switch it.Kind {
	case KindIndent:
		return fmt.Sprintf("in-%d", it.Depth)
	case KindDedent:
		return fmt.Sprintf("out-%d", it.Depth)
	case KindNode:
		return it.Post.ID
	default:
		return "?"
	}
}
