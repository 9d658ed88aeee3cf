// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, path, version string) {
	t.Helper()
	data := []byte("\nversion: \"" + version + "\"\nintents:\n  - key: GENERAL_HELP\n    contract: HELP_TEXT\n    description: fallback\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestNewRulesWatcher_Validation(t *testing.T) {
	_, err := NewRulesWatcher("", func(*RuleSet) {}, nil)
	assert.Error(t, err)

	_, err = NewRulesWatcher(filepath.Join(t.TempDir(), "rules.yaml"), nil, nil)
	assert.Error(t, err)
}

func TestRulesWatcher_DeliversValidatedReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRules(t, path, "v1")

	reloads := make(chan *RuleSet, 4)
	w, err := NewRulesWatcher(path, func(rs *RuleSet) { reloads <- rs }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watch loop a moment to start before triggering events.
	time.Sleep(100 * time.Millisecond)
	writeRules(t, path, "v2")

	select {
	case rs := <-reloads:
		assert.Equal(t, "v2", rs.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not delivered")
	}
}

func TestRulesWatcher_InvalidFileKeepsCurrentRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRules(t, path, "v1")

	reloads := make(chan *RuleSet, 4)
	w, err := NewRulesWatcher(path, func(rs *RuleSet) { reloads <- rs }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	// A broken edit must never reach the callback. A later good edit
	// must; its arrival also proves the broken one was dropped rather
	// than queued.
	require.NoError(t, os.WriteFile(path, []byte("version: [unclosed"), 0o644))
	time.Sleep(500 * time.Millisecond)
	writeRules(t, path, "v3")

	select {
	case rs := <-reloads:
		assert.Equal(t, "v3", rs.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not delivered")
	}
}
