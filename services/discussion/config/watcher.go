// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the config file whenever it changes and passes each valid
// result to onChange.
//
// Description:
//
//	The parent directory is watched rather than the file, so atomic
//	rename-on-save keeps working. Events are debounced. A reload that
//	fails to parse or validate is logged and skipped; the previous
//	configuration stays in effect. Environment overrides are re-applied on
//	every reload.
//
// Inputs:
//
//	ctx - Watch stops when ctx is done.
//	path - Config file, as passed to Load.
//	onChange - Called from the watch goroutine with each new config.
//
// Outputs:
//
//	error - Non-nil only if the watcher cannot be started. Returns nil
//	when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = resolvePath(path)
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(reloadDebounce)

		case <-debounce:
			debounce = nil
			if _, err := os.Stat(abs); err != nil {
				continue
			}
			cfg, err := load(abs, os.LookupEnv)
			if err != nil {
				slog.Warn("config reload rejected, keeping previous config",
					"path", abs, "error", err)
				continue
			}
			slog.Info("config reloaded", "path", abs)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}
