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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/journalclub/services/discussion/ranking"
	"gopkg.in/yaml.v3"
)

// snapshot is a thread export. The file may also be a bare list of posts.
// JSON files parse too, since JSON is valid YAML.
type snapshot struct {
	Thread string         `yaml:"thread,omitempty"`
	Posts  []ranking.Post `yaml:"posts"`
}

var (
	errEmptySnapshot = errors.New("snapshot contains no posts")
	errNegativeDepth = errors.New("negative depth")
)

// checkDepths rejects posts with a negative depth. Depth is otherwise
// trusted as written.
func checkDepths(posts []ranking.Post) error {
	for _, p := range posts {
		if p.Depth < 0 {
			return fmt.Errorf("post %s has depth %d: %w", p.ID, p.Depth, errNegativeDepth)
		}
	}
	return nil
}

func readSnapshotFile(path string) (*snapshot, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot: %w", err)
		}
		defer f.Close()
		r = f
	}
	snap, err := decodeSnapshot(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

func decodeSnapshot(r io.Reader) (*snapshot, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptySnapshot
		}
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errEmptySnapshot
	}

	var snap snapshot
	top := doc.Content[0]
	switch top.Kind {
	case yaml.SequenceNode:
		if err := top.Decode(&snap.Posts); err != nil {
			return nil, fmt.Errorf("decoding posts: %w", err)
		}
	case yaml.MappingNode:
		if err := top.Decode(&snap); err != nil {
			return nil, fmt.Errorf("decoding snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("parsing snapshot: expected a list of posts or a mapping, line %d", top.Line)
	}
	if len(snap.Posts) == 0 {
		return nil, errEmptySnapshot
	}
	return &snap, nil
}
