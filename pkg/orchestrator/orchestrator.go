// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package orchestrator runs analysis scripts in isolated runner processes.
//
// Each RunRequest becomes one process. The orchestrator writes the executable
// unit to a uniquely named file, hands mode, parameters and the resolved data
// source to the child through an environment variable, captures stdout and
// stderr in full, decodes side-channel artifacts from stdout and delivers
// exactly one RunResult. The unit file is removed on every exit path.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/params"
	"github.com/teradata-labs/sibridge/pkg/script"
	"github.com/teradata-labs/sibridge/pkg/sidechannel"
)

const (
	// DefaultTimeout bounds a run's wall-clock time.
	DefaultTimeout = 60 * time.Second

	// waitDelay is how long a runner has to exit after SIGTERM before it
	// is killed.
	waitDelay = 2 * time.Second

	unitPrefix = "run-"
	unitSuffix = ".star"
)

// ErrUnknownMode is returned for requests whose mode is neither schema nor
// execution.
var ErrUnknownMode = errors.New("unknown run mode")

// Config configures how runner processes are launched.
type Config struct {
	// Interpreter is the runner executable. Defaults to the current binary.
	Interpreter string

	// Args precede the unit path on the runner's command line. Defaults to
	// ["runner"] when Interpreter is defaulted.
	Args []string

	// WorkDir holds unit files and is the runner's working directory.
	// Defaults to the system temp directory.
	WorkDir string

	// Timeout kills runs that take longer. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Env is appended to the inherited environment of every runner.
	Env []string
}

// SourceResolver maps a data source handle to its definition.
type SourceResolver interface {
	Resolve(handle string) (fabric.SourceConfig, error)
}

// Orchestrator launches runs. It is safe for concurrent use; runs share no
// mutable state.
type Orchestrator struct {
	cfg     Config
	sources SourceResolver
	logger  *zap.Logger
}

// New creates an orchestrator. sources may be nil when no run names a data
// source.
func New(cfg Config, sources SourceResolver, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interpreter == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate runner executable: %w", err)
		}
		cfg.Interpreter = exe
		if cfg.Args == nil {
			cfg.Args = []string{"runner"}
		}
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create work dir %s: %w", cfg.WorkDir, err)
	}

	return &Orchestrator{cfg: cfg, sources: sources, logger: logger}, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// RunScript executes req and returns its result. The error return is reserved
// for invalid requests; every valid request yields exactly one RunResult,
// failed or not.
func (o *Orchestrator) RunScript(ctx context.Context, req RunRequest) (*RunResult, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	var source *fabric.SourceConfig
	if req.DataSource != "" {
		if o.sources == nil {
			return nil, fmt.Errorf("%w: %q", fabric.ErrUnknownSource, req.DataSource)
		}
		src, err := o.sources.Resolve(req.DataSource)
		if err != nil {
			return nil, err
		}
		source = &src
	}

	r := &run{
		id:     uuid.New().String(),
		req:    req,
		source: source,
		cfg:    o.cfg,
		start:  time.Now(),
		state:  StateBuilding,
	}
	r.logger = o.logger.With(
		zap.String("run_id", r.id),
		zap.String("mode", string(req.Mode)),
	)
	return r.execute(ctx), nil
}

// run is the state of one RunRequest.
type run struct {
	id     string
	req    RunRequest
	source *fabric.SourceConfig
	cfg    Config
	start  time.Time
	logger *zap.Logger

	mu    sync.Mutex
	state State

	once   sync.Once
	result *RunResult
}

func (r *run) transition(to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !CanTransition(r.state, to) {
		r.logger.Error("invalid run state transition",
			zap.Stringer("from", r.state),
			zap.Stringer("to", to),
		)
		return
	}
	r.logger.Debug("run state", zap.Stringer("from", r.state), zap.Stringer("to", to))
	r.state = to
}

func (r *run) currentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// deliver latches res as the run's result. Later deliveries are suppressed.
func (r *run) deliver(res *RunResult) *RunResult {
	delivered := false
	r.once.Do(func() {
		res.RunID = r.id
		res.Mode = r.req.Mode
		res.DurationMs = time.Since(r.start).Milliseconds()
		if res.Logs == nil {
			res.Logs = []string{}
		}
		r.result = res
		delivered = true

		runsTotal.WithLabelValues(string(r.req.Mode), res.Outcome()).Inc()
		runDuration.WithLabelValues(string(r.req.Mode)).Observe(time.Since(r.start).Seconds())
	})
	if !delivered {
		duplicateCompletions.Inc()
		r.logger.Warn("duplicate run completion suppressed")
	}
	return r.result
}

func (r *run) fail(kind ErrorKind, msg string, res *RunResult) *RunResult {
	if res == nil {
		res = &RunResult{ExitCode: -1}
	}
	res.Failed = true
	res.Error = &RunError{Kind: kind, Message: msg}
	r.transition(StateFailed)
	r.logger.Info("run failed",
		zap.String("kind", string(kind)),
		zap.String("message", msg),
		zap.Int("exit_code", res.ExitCode),
	)
	return r.deliver(res)
}

func (r *run) execute(ctx context.Context) *RunResult {
	unitPath, err := r.writeUnit()
	if err != nil {
		return r.fail(KindLaunchFailure, err.Error(), nil)
	}
	defer r.removeUnit(unitPath)

	env, err := r.environment()
	if err != nil {
		return r.fail(KindLaunchFailure, err.Error(), nil)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, r.cfg.Args...), unitPath)
	// #nosec G204 -- interpreter comes from operator configuration
	cmd := exec.CommandContext(runCtx, r.cfg.Interpreter, args...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = env
	// SIGTERM lets the runner cancel the script and flush what it printed;
	// WaitDelay escalates to SIGKILL.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.transition(StateLaunching)
	if err := cmd.Start(); err != nil {
		return r.fail(KindLaunchFailure, fmt.Sprintf("failed to start runner: %v", err), nil)
	}
	r.transition(StateRunning)
	runsInFlight.Inc()
	r.logger.Debug("runner started", zap.Int("pid", cmd.Process.Pid))

	waitErr := cmd.Wait()
	runsInFlight.Dec()
	r.transition(StateDraining)

	res := r.drain(stdout.Bytes(), stderr.String())
	res.ExitCode = cmd.ProcessState.ExitCode()

	if kind, failed := failureKind(waitErr, ctx.Err(), runCtx.Err()); failed {
		var msg string
		switch kind {
		case KindCanceled:
			msg = fmt.Sprintf("run canceled: %v", ctx.Err())
		case KindTimeout:
			msg = fmt.Sprintf("script exceeded timeout of %s", r.cfg.Timeout)
		default:
			msg = fmt.Sprintf("script exited with code %d", res.ExitCode)
		}
		return r.fail(kind, msg, r.withStderr(res))
	}

	r.transition(StateCompleted)
	r.logger.Debug("run completed", zap.Int("log_lines", len(res.Logs)))
	return r.deliver(res)
}

// failureKind classifies a finished runner. A runner that exited cleanly has
// completed, even if the caller's context ended after it exited.
func failureKind(waitErr, callerErr, runErr error) (ErrorKind, bool) {
	switch {
	case waitErr == nil:
		return "", false
	case callerErr != nil:
		return KindCanceled, true
	case errors.Is(runErr, context.DeadlineExceeded):
		return KindTimeout, true
	default:
		return KindScriptFailure, true
	}
}

// writeUnit writes the executable unit to a file no other run can share.
func (r *run) writeUnit() (string, error) {
	path := filepath.Join(r.cfg.WorkDir, unitPrefix+r.id+unitSuffix)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create script unit: %w", err)
	}
	if _, err := f.Write(script.BuildUnit(r.req.Script)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write script unit: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write script unit: %w", err)
	}
	return path, nil
}

func (r *run) removeUnit(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("failed to remove script unit", zap.String("path", path), zap.Error(err))
	}
}

// environment returns the runner's environment: the inherited one without any
// stale envelope, the configured extras, and this run's envelope.
func (r *run) environment() ([]string, error) {
	envelope, err := script.RunContext{
		RunID:  r.id,
		Mode:   r.req.Mode,
		Params: r.req.Params,
		Source: r.source,
	}.Encode()
	if err != nil {
		return nil, err
	}

	prefix := script.EnvRunContext + "="
	env := make([]string, 0, len(os.Environ())+len(r.cfg.Env)+1)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, prefix) {
			env = append(env, kv)
		}
	}
	env = append(env, r.cfg.Env...)
	env = append(env, prefix+envelope)
	return env, nil
}

// drain decodes the runner's stdout and keeps only the artifacts valid for
// the run's mode.
func (r *run) drain(stdout []byte, stderr string) *RunResult {
	decoded := sidechannel.DecodeBytes(stdout)
	for _, tag := range decoded.Dropped {
		artifactDecodeFailures.WithLabelValues(string(tag)).Inc()
		r.logger.Warn("dropped malformed artifact", zap.String("tag", string(tag)))
	}

	res := &RunResult{Logs: decoded.Logs, RawStderr: stderr}

	switch r.req.Mode {
	case params.ModeExecution:
		if chart, ok := decoded.Artifact(sidechannel.TagChart); ok {
			res.Chart = chart
		}
	case params.ModeSchema:
		if raw, ok := decoded.Artifact(sidechannel.TagSchema); ok {
			schema := params.NewSchema()
			if err := json.Unmarshal(raw, schema); err != nil {
				artifactDecodeFailures.WithLabelValues(string(sidechannel.TagSchema)).Inc()
				r.logger.Warn("dropped malformed schema", zap.Error(err))
			} else {
				res.Schema = schema
			}
		}
	}
	return res
}

// withStderr appends the diagnostic stream to the logs of a failed run.
func (r *run) withStderr(res *RunResult) *RunResult {
	if s := strings.TrimRight(res.RawStderr, "\r\n"); s != "" {
		for _, line := range strings.Split(s, "\n") {
			res.Logs = append(res.Logs, strings.TrimSuffix(line, "\r"))
		}
	}
	return res
}
