// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/journalclub/services/discussion/ranking"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorEven    = lipgloss.Color("#104855")
	colorOdd     = lipgloss.Color("#0D2F39")
	colorRoot    = lipgloss.Color("#2CD7C7")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorError   = lipgloss.Color("#E74C3C")
	colorSuccess = lipgloss.Color("#2CD7C7")
)

// styles holds the lipgloss styles for one output stream. Without a
// terminal every style is the zero style and renders text unchanged.
type styles struct {
	root    lipgloss.Style
	even    lipgloss.Style
	odd     lipgloss.Style
	muted   lipgloss.Style
	errText lipgloss.Style
	okText  lipgloss.Style
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newStyles(w io.Writer, color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		root:    r.NewStyle().Bold(true).Foreground(colorRoot),
		even:    r.NewStyle().Background(colorEven),
		odd:     r.NewStyle().Background(colorOdd),
		muted:   r.NewStyle().Foreground(colorMuted),
		errText: r.NewStyle().Foreground(colorError),
		okText:  r.NewStyle().Foreground(colorSuccess),
	}
}

func describePost(p ranking.Post, aggregate int) string {
	if p.Score == ranking.DeletedScore {
		return fmt.Sprintf("%s [deleted] agg=%d", p.ID, aggregate)
	}
	return fmt.Sprintf("%s score=%d agg=%d", p.ID, p.Score, aggregate)
}

func indent(depth int) string {
	return strings.Repeat("  ", max(depth, 0))
}

// renderIndented writes one line per post, indented by depth and shaded by
// depth parity. With markers set, indent and dedent markers get their own
// muted lines.
func renderIndented(w io.Writer, st styles, items []ranking.Item, markers bool) error {
	for _, it := range items {
		var line string
		switch {
		case it.IsMarker():
			if !markers {
				continue
			}
			line = indent(it.Depth) + st.muted.Render(it.String())
		case it.Post.IsRoot():
			line = st.root.Render(describePost(it.Post, it.Aggregate))
		default:
			shade := st.odd
			if it.EvenDepth() {
				shade = st.even
			}
			line = indent(it.Depth) + shade.Render(describePost(it.Post, it.Aggregate))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// renderPlain writes the posts in display order without indentation.
func renderPlain(w io.Writer, r *ranking.Ranking, posts []ranking.Post) error {
	for _, p := range posts {
		agg, _ := r.AggregateScore(p.ID)
		if _, err := fmt.Fprintln(w, describePost(p, agg)); err != nil {
			return err
		}
	}
	return nil
}
