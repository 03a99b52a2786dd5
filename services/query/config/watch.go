// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

// =============================================================================
// Intent Config File Override and Hot Reload
// =============================================================================
//
// Deployments normally run on the embedded rule set. An operator can point
// the service at an external intents YAML instead; edits to that file are
// picked up live, and a file that fails validation leaves the running
// configuration untouched.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the write-then-rename event bursts editors and
// config-management tools produce into a single reload.
const reloadDebounce = 250 * time.Millisecond

// LoadIntentConfigFile reads, validates, and installs an intent configuration
// from an external YAML file, replacing the cached config on success.
func LoadIntentConfigFile(ctx context.Context, path string) (*IntentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadIntentConfigFile: %w", err)
	}

	cfg, err := LoadIntentConfig(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("LoadIntentConfigFile %q: %w", path, err)
	}

	intentConfigMu.Lock()
	cachedIntentConfig = cfg
	intentConfigLoadErr = nil
	intentConfigMu.Unlock()
	return cfg, nil
}

// WatchIntentsFile reloads the intent configuration whenever the file at
// path changes, until ctx is cancelled. Call in its own goroutine.
//
// # Description
//
// The watch is on the parent directory, not the file itself: editors and
// orchestrators typically replace config files by rename, which would
// silently detach a direct file watch. A reload that fails validation is
// logged and discarded; classification continues on the previous rule set.
// onReload, if non-nil, is called with each successfully installed config.
func WatchIntentsFile(ctx context.Context, path string, logger *slog.Logger, onReload func(*IntentConfig)) error {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("WatchIntentsFile: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("WatchIntentsFile: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("WatchIntentsFile: watch %q: %w", filepath.Dir(abs), err)
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := LoadIntentConfigFile(ctx, abs)
			if err != nil {
				logger.Warn("intent config reload rejected, keeping previous rules",
					slog.String("path", abs),
					slog.String("error", err.Error()),
				)
				continue
			}
			logger.Info("intent config reloaded",
				slog.String("path", abs),
				slog.Int("intents", len(cfg.Intents)),
			)
			if onReload != nil {
				onReload(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("intent config watcher", slog.String("error", err.Error()))
		}
	}
}
