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
	"fmt"
	"strings"
)

// Sentinel errors for thread structure violations.
//
// Every error returned by Build or Rank wraps exactly one of these, so
// callers can classify failures with errors.Is regardless of the detail
// carried by the concrete error type.
var (
	// ErrMissingRoot is returned when no post in the snapshot has depth 0.
	ErrMissingRoot = errors.New("thread has no root post")

	// ErrMultipleRoots is returned when more than one post has depth 0.
	ErrMultipleRoots = errors.New("thread has multiple root posts")

	// ErrOrphanPost is returned when a non-root post's parent is not part
	// of the snapshot.
	ErrOrphanPost = errors.New("post parent not found in thread")

	// ErrDuplicatePost is returned when two posts share an ID.
	ErrDuplicatePost = errors.New("duplicate post ID")

	// ErrCycle is returned when parent links form a cycle, leaving posts
	// unreachable from the root.
	ErrCycle = errors.New("post parent links form a cycle")
)

// MultipleRootsError lists every depth-0 post found in the snapshot.
type MultipleRootsError struct {
	PostIDs []string
}

func (e *MultipleRootsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMultipleRoots, strings.Join(e.PostIDs, ", "))
}

func (e *MultipleRootsError) Unwrap() error { return ErrMultipleRoots }

// OrphanPostError names the post whose parent could not be resolved.
// ParentID is empty when a non-root post carries no parent at all.
type OrphanPostError struct {
	PostID   string
	ParentID string
}

func (e *OrphanPostError) Error() string {
	if e.ParentID == "" {
		return fmt.Sprintf("%s: post %q has depth > 0 but no parent", ErrOrphanPost, e.PostID)
	}
	return fmt.Sprintf("%s: post %q references %q", ErrOrphanPost, e.PostID, e.ParentID)
}

func (e *OrphanPostError) Unwrap() error { return ErrOrphanPost }

// DuplicatePostError names the ID seen more than once.
type DuplicatePostError struct {
	PostID string
}

func (e *DuplicatePostError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicatePost, e.PostID)
}

func (e *DuplicatePostError) Unwrap() error { return ErrDuplicatePost }

// CycleError lists the posts that could not be reached from the root.
type CycleError struct {
	PostIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: unreachable posts %s", ErrCycle, strings.Join(e.PostIDs, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// IsIntegrityError reports whether err describes a malformed thread
// snapshot rather than an I/O or programming failure.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrMissingRoot) ||
		errors.Is(err, ErrMultipleRoots) ||
		errors.Is(err, ErrOrphanPost) ||
		errors.Is(err, ErrDuplicatePost) ||
		errors.Is(err, ErrCycle)
}

// IntegrityKind returns a short label for an integrity error, suitable for
// metric labels. Returns "unknown" for any other error.
func IntegrityKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingRoot):
		return "missing_root"
	case errors.Is(err, ErrMultipleRoots):
		return "multiple_roots"
	case errors.Is(err, ErrOrphanPost):
		return "orphan_post"
	case errors.Is(err, ErrDuplicatePost):
		return "duplicate_post"
	case errors.Is(err, ErrCycle):
		return "cycle"
	default:
		return "unknown"
	}
}
