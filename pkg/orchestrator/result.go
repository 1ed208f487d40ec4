// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/sibridge/pkg/params"
)

// ErrorKind classifies a failed run.
type ErrorKind string

const (
	// KindLaunchFailure means the runner could not be started at all.
	KindLaunchFailure ErrorKind = "launch_failure"
	// KindScriptFailure means the runner exited non-zero.
	KindScriptFailure ErrorKind = "script_failure"
	// KindTimeout means the runner was killed at the run timeout.
	KindTimeout ErrorKind = "timeout"
	// KindCanceled means the caller's context ended before the runner exited.
	KindCanceled ErrorKind = "canceled"
)

// RunError describes why a run failed.
type RunError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// RunRequest is one script run. It maps to exactly one runner process.
type RunRequest struct {
	Script     string                 `json:"script"`
	DataSource string                 `json:"data_source,omitempty"`
	Mode       params.Mode            `json:"mode"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// RunResult is the single result of a run. Chart is only ever set in
// execution mode and Schema only in schema mode.
type RunResult struct {
	RunID      string          `json:"run_id"`
	Mode       params.Mode     `json:"mode"`
	Logs       []string        `json:"logs"`
	Chart      json.RawMessage `json:"chart,omitempty"`
	Schema     *params.Schema  `json:"schema,omitempty"`
	Failed     bool            `json:"failed"`
	RawStderr  string          `json:"raw_stderr,omitempty"`
	ExitCode   int             `json:"exit_code"`
	Error      *RunError       `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// Outcome is the metric label for the result.
func (r *RunResult) Outcome() string {
	if r.Error != nil {
		return string(r.Error.Kind)
	}
	return "success"
}
