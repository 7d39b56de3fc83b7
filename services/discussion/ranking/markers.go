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

// Mode selects the output form of a ranked thread.
type Mode string

const (
	// ModeIndent returns posts bracketed by indent/dedent markers.
	ModeIndent Mode = "indent"

	// ModePlain returns posts only.
	ModePlain Mode = "plain"
)

// ErrUnknownMode is returned by ParseMode for unrecognised values.
var ErrUnknownMode = errors.New("unknown output mode")

// ParseMode accepts "indent", "plain" or "" (indent).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeIndent:
		return ModeIndent, nil
	case ModePlain:
		return ModePlain, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// ErrUnbalanced is returned by CheckBalance.
var ErrUnbalanced = errors.New("unbalanced indent markers")

// CheckBalance verifies that markers in items nest like brackets, that each
// Dedent closes an Indent of the same depth, and that every post sits
// directly inside an Indent of its own depth.
func CheckBalance(items []Item) error {
	var open []int
	for i, it := range items {
		switch it.Kind {
		case KindIndent:
			open = append(open, it.Depth)
		case KindDedent:
			if len(open) == 0 {
				return fmt.Errorf("%w: dedent(%d) at %d with nothing open", ErrUnbalanced, it.Depth, i)
			}
			top := open[len(open)-1]
			if top != it.Depth {
				return fmt.Errorf("%w: dedent(%d) at %d closes indent(%d)", ErrUnbalanced, it.Depth, i, top)
			}
			open = open[:len(open)-1]
		case KindNode:
			if len(open) == 0 || open[len(open)-1] != it.Depth {
				return fmt.Errorf("%w: post %q at %d outside indent(%d)", ErrUnbalanced, it.Post.ID, i, it.Depth)
			}
		}
	}
	if len(open) != 0 {
		return fmt.Errorf("%w: %d indent(s) left open", ErrUnbalanced, len(open))
	}
	return nil
}

// Posts extracts the posts from items, dropping markers.
func Posts(items []Item) []Post {
	out := make([]Post, 0, len(items)/3+1)
	for _, it := range items {
		if it.Kind == KindNode {
			out = append(out, it.Post)
		}
	}
	return out
}
