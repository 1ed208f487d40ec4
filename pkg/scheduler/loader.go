// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package scheduler

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader keeps the scheduler in sync with a directory of schedule files. Each
// *.yaml or *.yml file holds one schedule; the name defaults to the file's
// base name and a relative script_file resolves against the directory.
type Loader struct {
	dir        string
	scheduler  *Scheduler
	logger     *zap.Logger
	fileHashes map[string]string // path -> SHA256 hash for change detection
	names      map[string]string // path -> schedule name
}

// NewLoader creates a loader for dir.
func NewLoader(dir string, scheduler *Scheduler, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		dir:        dir,
		scheduler:  scheduler,
		logger:     logger,
		fileHashes: make(map[string]string),
		names:      make(map[string]string),
	}
}

// ScanDirectory adds new and changed schedule files and removes the schedules
// of deleted files. A bad file is logged and skipped.
func (l *Loader) ScanDirectory(ctx context.Context) error {
	if _, err := os.Stat(l.dir); errors.Is(err, os.ErrNotExist) {
		l.logger.Debug("Schedule directory does not exist", zap.String("dir", l.dir))
		return nil
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("failed to glob yaml files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(l.dir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to glob yml files: %w", err)
	}
	files = append(files, ymlFiles...)

	seen := make(map[string]bool, len(files))
	for _, path := range files {
		seen[path] = true

		hash, err := fileHash(path)
		if err != nil {
			l.logger.Error("Failed to hash file", zap.String("path", path), zap.Error(err))
			continue
		}
		if old, ok := l.fileHashes[path]; ok && old == hash {
			continue
		}

		if err := l.loadFile(path); err != nil {
			l.logger.Error("Failed to load schedule file", zap.String("path", path), zap.Error(err))
			continue
		}
		l.fileHashes[path] = hash
	}

	for path := range l.fileHashes {
		if seen[path] {
			continue
		}
		name := l.names[path]
		l.logger.Info("Schedule file deleted, removing schedule",
			zap.String("path", path),
			zap.String("schedule", name))
		if err := l.scheduler.Remove(name); err != nil && !errors.Is(err, ErrNotFound) {
			l.logger.Error("Failed to remove schedule", zap.String("schedule", name), zap.Error(err))
		}
		delete(l.fileHashes, path)
		delete(l.names, path)
	}
	return nil
}

func (l *Loader) loadFile(path string) error {
	sched, err := LoadScheduleFile(path)
	if err != nil {
		return err
	}
	if err := l.scheduler.Add(sched); err != nil {
		return err
	}

	// A renamed schedule leaves its old registration behind.
	if old, ok := l.names[path]; ok && old != sched.Name {
		if err := l.scheduler.Remove(old); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	l.names[path] = sched.Name
	l.logger.Info("Loaded schedule file", zap.String("path", path), zap.String("schedule", sched.Name))
	return nil
}

// LoadScheduleFile parses one schedule file.
func LoadScheduleFile(path string) (Schedule, error) {
	// #nosec G304 -- path comes from the configured schedule directory
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Schedule{}, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var sched Schedule
	if err := yaml.Unmarshal(data, &sched); err != nil {
		return Schedule{}, fmt.Errorf("failed to parse schedule YAML: %w", err)
	}
	if sched.Name == "" {
		base := filepath.Base(path)
		sched.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if sched.ScriptFile != "" && !filepath.IsAbs(sched.ScriptFile) {
		sched.ScriptFile = filepath.Join(filepath.Dir(path), sched.ScriptFile)
	}
	sched.Path = path
	return sched, sched.Validate()
}

func fileHash(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
