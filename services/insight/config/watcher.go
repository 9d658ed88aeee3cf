// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

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

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 250 * time.Millisecond

// RulesWatcher watches an on-disk rules file and delivers validated
// replacement RuleSets to a callback.
//
// Description:
//
//	The watcher observes the file's parent directory (editors replace
//	files by rename, which would orphan a direct file watch). On a
//	write or create affecting the rules file, the file is re-read and
//	re-validated; only a RuleSet that passes validation reaches the
//	callback. An invalid file keeps the last good rule set and logs a
//	warning; a broken edit never degrades a running service.
//
//	The callback runs on the watcher goroutine and must not block.
//	Consumers swap the new rule set in behind an atomic pointer (the
//	service rebuilds its pipeline from it); loaded tables are never
//	mutated in place.
//
// Thread Safety: Safe for concurrent use. Run owns the underlying
// watcher and closes it when its context is cancelled.
type RulesWatcher struct {
	path     string
	onReload func(*RuleSet)
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewRulesWatcher creates a watcher for the given rules file.
//
// Inputs:
//
//	path - Path to the YAML rules file. Must not be empty.
//	onReload - Receives each validated replacement RuleSet. Must not be nil.
//	logger - Logger instance. May be nil.
//
// Outputs:
//
//	*RulesWatcher - The constructed watcher. Call Run to start it.
//	error - Non-nil if the underlying watcher cannot be created or the
//	        parent directory cannot be watched.
func NewRulesWatcher(path string, onReload func(*RuleSet), logger *slog.Logger) (*RulesWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("NewRulesWatcher: path must not be empty")
	}
	if onReload == nil {
		return nil, fmt.Errorf("NewRulesWatcher: onReload must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("NewRulesWatcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("NewRulesWatcher: watch %s: %w", filepath.Dir(path), err)
	}

	return &RulesWatcher{
		path:     path,
		onReload: onReload,
		logger:   logger,
		fsw:      fsw,
	}, nil
}

// Run processes file events until the context is cancelled.
//
// Description:
//
//	Blocks; callers run it on its own goroutine. Write bursts are
//	debounced so a save produces one reload, not one per chunk.
//
// Inputs:
//
//	ctx - Cancels the watch loop.
func (w *RulesWatcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", slog.String("error", err.Error()))
		}
	}
}

// reload reads and validates the rules file, delivering it on success.
func (w *RulesWatcher) reload(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("rules reload: read failed, keeping current rules",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	rs, err := LoadRuleSet(ctx, data)
	if err != nil {
		w.logger.Warn("rules reload: validation failed, keeping current rules",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("rules reloaded",
		slog.String("path", w.path),
		slog.String("version", rs.Version),
	)
	w.onReload(rs)
}
