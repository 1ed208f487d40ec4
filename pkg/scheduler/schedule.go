// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package scheduler runs scripts in execution mode on cron schedules and keeps
// their execution history in SQLite.
package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrNotFound is returned for an unknown schedule name.
	ErrNotFound = errors.New("schedule not found")

	// ErrAlreadyRunning is returned when a skip-if-running schedule is
	// triggered while its previous run is still in progress.
	ErrAlreadyRunning = errors.New("previous execution still running")
)

// Schedule runs one script on a cron expression.
type Schedule struct {
	Name string `yaml:"name" mapstructure:"name" json:"name"`

	// Cron is a standard 5-field expression or a descriptor such as @hourly
	// or @every 10m.
	Cron string `yaml:"cron" mapstructure:"cron" json:"cron"`

	// Timezone is an IANA zone name. Empty means the server's local zone.
	Timezone string `yaml:"timezone" mapstructure:"timezone" json:"timezone,omitempty"`

	// Exactly one of Script and ScriptFile is set.
	Script     string `yaml:"script" mapstructure:"script" json:"script,omitempty"`
	ScriptFile string `yaml:"script_file" mapstructure:"script_file" json:"script_file,omitempty"`

	DataSource string                 `yaml:"data_source" mapstructure:"data_source" json:"data_source,omitempty"`
	Params     map[string]interface{} `yaml:"params" mapstructure:"params" json:"params,omitempty"`

	SkipIfRunning  bool `yaml:"skip_if_running" mapstructure:"skip_if_running" json:"skip_if_running"`
	TimeoutSeconds int  `yaml:"timeout_seconds" mapstructure:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Disabled       bool `yaml:"disabled" mapstructure:"disabled" json:"disabled"`

	// Path is the schedule file the definition was loaded from, if any.
	Path string `yaml:"-" mapstructure:"-" json:"path,omitempty"`
}

// Validate checks the definition without touching the script file.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if strings.ContainsAny(s.Name, "/ \t") {
		return fmt.Errorf("schedule name %q must not contain spaces or slashes", s.Name)
	}
	if s.Cron == "" {
		return fmt.Errorf("schedule %s: cron expression is required", s.Name)
	}
	if strings.Contains(s.Cron, "TZ=") {
		return fmt.Errorf("schedule %s: use the timezone field instead of a TZ prefix", s.Name)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("schedule %s: invalid timezone: %w", s.Name, err)
		}
	}
	if _, err := cron.ParseStandard(s.spec()); err != nil {
		return fmt.Errorf("schedule %s: invalid cron expression: %w", s.Name, err)
	}
	if (s.Script == "") == (s.ScriptFile == "") {
		return fmt.Errorf("schedule %s: exactly one of script and script_file is required", s.Name)
	}
	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("schedule %s: timeout_seconds must not be negative", s.Name)
	}
	return nil
}

// spec is the expression handed to the cron engine.
func (s *Schedule) spec() string {
	if s.Timezone == "" {
		return s.Cron
	}
	return "CRON_TZ=" + s.Timezone + " " + s.Cron
}

// Next returns the first activation after t.
func (s *Schedule) Next(t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(s.spec())
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t), nil
}

// Source returns the script text, reading ScriptFile on every call so edits
// apply to the next run.
func (s *Schedule) Source() (string, error) {
	if s.Script != "" {
		return s.Script, nil
	}
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(filepath.Clean(s.ScriptFile))
	if err != nil {
		return "", fmt.Errorf("failed to read script for schedule %s: %w", s.Name, err)
	}
	return string(data), nil
}

// Status is the outcome of one scheduled execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Trigger records what started an execution.
type Trigger string

const (
	TriggerCron   Trigger = "cron"
	TriggerManual Trigger = "manual"
)

// Execution is one recorded run of a schedule.
type Execution struct {
	ID         string          `json:"id"`
	Schedule   string          `json:"schedule"`
	RunID      string          `json:"run_id,omitempty"`
	Trigger    Trigger         `json:"trigger"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMs int64           `json:"duration_ms"`
	Chart      json.RawMessage `json:"chart,omitempty"`
}

// Stats aggregates the executions of one schedule.
type Stats struct {
	Total      int64     `json:"total"`
	Successful int64     `json:"successful"`
	Failed     int64     `json:"failed"`
	Skipped    int64     `json:"skipped"`
	LastStatus Status    `json:"last_status,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
}

// ScheduleStatus is a schedule with its live and recorded state.
type ScheduleStatus struct {
	Schedule  Schedule  `json:"schedule"`
	Stats     Stats     `json:"stats"`
	NextRunAt time.Time `json:"next_run_at,omitempty"`
	Running   bool      `json:"running"`
}
