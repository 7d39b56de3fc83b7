// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command threadrank ranks and validates thread snapshot files offline.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/journalclub/services/discussion/ranking"
	"github.com/spf13/cobra"
)

// errInvalidSnapshot is returned by validate after the report is printed.
var errInvalidSnapshot = errors.New("snapshot failed validation")

type rankOptions struct {
	plain   bool
	replies bool
	markers bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "threadrank",
		Short: "Rank and validate discussion thread snapshots",
		Long: `threadrank works on thread snapshot files: YAML or JSON holding either a
list of posts or a mapping with a "posts" key. Each post has id,
parent_id, depth, score and order.

Examples:
  threadrank rank thread.yaml              # indented, best branch first
  threadrank rank thread.yaml --plain      # posts only
  threadrank rank thread.json --replies    # hide the thread's root post
  threadrank validate thread.yaml          # report structural problems`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRankCmd(), newValidateCmd())
	return root
}

func newRankCmd() *cobra.Command {
	var opts rankOptions
	cmd := &cobra.Command{
		Use:   "rank <file>",
		Short: "Print a thread in display order",
		Long: `Prints the posts of a snapshot in display order. Siblings are ordered by
the best score anywhere in their subtree. Nested replies are indented and
shaded by depth parity when writing to a terminal. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print posts only, without indentation")
	cmd.Flags().BoolVar(&opts.replies, "replies", false, "omit the root post")
	cmd.Flags().BoolVar(&opts.markers, "markers", false, "print indent/dedent markers as their own lines")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable styling even on a terminal")
	return cmd
}

func runRank(cmd *cobra.Command, path string, opts rankOptions) error {
	snap, err := readSnapshotFile(path)
	if err != nil {
		return err
	}
	if err := checkDepths(snap.Posts); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	r, err := ranking.Rank(snap.Posts)
	if err != nil {
		return fmt.Errorf("ranking %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if opts.plain {
		posts := r.Order()
		if opts.replies {
			posts = posts[1:]
		}
		return renderPlain(out, r, posts)
	}

	items := r.Flatten()
	if opts.replies {
		items = r.Replies()
	}
	st := newStyles(out, !opts.noColor && isTerminal(out))
	return renderIndented(out, st, items, opts.markers)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a snapshot for structural integrity errors",
		Long: `Reports the first structural problem in a snapshot: a missing root,
several roots, a post whose parent is absent, a repeated ID, a reply
cycle, or a negative depth. Exits non-zero when the snapshot is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, path string) error {
	snap, err := readSnapshotFile(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	st := newStyles(out, isTerminal(out))

	if err := checkDepths(snap.Posts); err != nil {
		fmt.Fprintf(out, "%s negative_depth: %v\n", st.errText.Render("✗"), err)
		return errInvalidSnapshot
	}

	tree, err := ranking.Build(snap.Posts)
	if err != nil {
		if !ranking.IsIntegrityError(err) {
			return err
		}
		fmt.Fprintf(out, "%s %s: %v\n", st.errText.Render("✗"), ranking.IntegrityKind(err), err)
		return errInvalidSnapshot
	}

	r := ranking.RankTree(tree)
	if err := ranking.CheckBalance(r.Flatten()); err != nil {
		return fmt.Errorf("ranked output is malformed: %w", err)
	}

	maxDepth := 0
	for _, p := range snap.Posts {
		maxDepth = max(maxDepth, p.Depth)
	}
	fmt.Fprintf(out, "%s %d posts, root %s, max depth %d\n",
		st.okText.Render("✓"), tree.Len(), tree.Root().ID, maxDepth)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalidSnapshot) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
