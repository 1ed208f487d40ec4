// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last change before a reload.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher calls OnChange after a watched file is written, created or
// renamed into place. Bursts of events within the debounce window collapse
// into one call.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange func(path string)
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	timerMu sync.Mutex
	timer   *time.Timer

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for path. The parent directory is watched
// so editors that replace the file atomically are still seen.
func NewFileWatcher(path string, debounce time.Duration, logger *zap.Logger, onChange func(path string)) (*FileWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FileWatcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		watcher:  watcher,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. The watcher stops when ctx is done or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("Watching file for changes",
		zap.String("path", w.path),
		zap.Duration("debounce", w.debounce))

	go w.loop(ctx)
	return nil
}

func (w *FileWatcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *FileWatcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.logger.Info("Watched file changed", zap.String("path", w.path), zap.String("operation", event.Op.String()))
		w.onChange(w.path)
	})
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *FileWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
