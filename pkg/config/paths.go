// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config resolves the sibridge data and work directories and watches
// configuration files for changes.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvDataDir overrides the data directory.
	EnvDataDir = "SIBRIDGE_DATA_DIR"

	// EnvWorkDir overrides the directory holding script units.
	EnvWorkDir = "SIBRIDGE_WORK_DIR"
)

// GetDataDir returns the sibridge data directory.
//
// Priority:
// 1. SIBRIDGE_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.sibridge (default)
//
// The returned path is always absolute. Tilde (~) is expanded to the user's
// home directory.
//
// This function is called during bootstrap (before the config file is loaded)
// to locate the config file itself, so it reads the environment directly
// rather than through viper.
func GetDataDir() string {
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return ".sibridge"
	}
	return filepath.Join(homeDir, ".sibridge")
}

// GetWorkDir returns the directory where script units are written.
//
// Priority:
// 1. SIBRIDGE_WORK_DIR environment variable (if set and non-empty)
// 2. <data dir>/runs (default)
func GetWorkDir() string {
	if workDir := os.Getenv(EnvWorkDir); workDir != "" {
		return expandPath(workDir)
	}
	return GetSubDir("runs")
}

// GetSubDir returns a subdirectory within the data directory.
// Example: GetSubDir("runs") returns ~/.sibridge/runs
func GetSubDir(subdir string) string {
	return filepath.Join(GetDataDir(), subdir)
}

// ExpandPath expands a leading ~ and makes path absolute.
func ExpandPath(path string) string {
	return expandPath(path)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // Return as-is if we can't make it absolute
	}
	return absPath
}
