// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIntentsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadIntentConfigFile_InstallsOverride(t *testing.T) {
	ResetIntentConfig()
	t.Cleanup(ResetIntentConfig)

	path := writeIntentsFile(t, `
intents:
  - name: ONLY_ONE
    tier: 1
    keywords: ["solo"]
`)
	cfg, err := LoadIntentConfigFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, cfg.Intents, 1)

	// The override becomes the cached config.
	got, err := GetIntentConfig(context.Background())
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestLoadIntentConfigFile_InvalidKeepsPrevious(t *testing.T) {
	ResetIntentConfig()
	t.Cleanup(ResetIntentConfig)

	before, err := GetIntentConfig(context.Background())
	require.NoError(t, err)

	path := writeIntentsFile(t, `
intents:
  - name: BROKEN
    tier: 9
    keywords: ["x"]
`)
	_, err = LoadIntentConfigFile(context.Background(), path)
	require.Error(t, err)

	after, err := GetIntentConfig(context.Background())
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestLoadIntentConfigFile_MissingFile(t *testing.T) {
	_, err := LoadIntentConfigFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
