// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/pkg/orchestrator"
	"github.com/teradata-labs/sibridge/pkg/params"
)

// Runner executes one script run. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	RunScript(ctx context.Context, req orchestrator.RunRequest) (*orchestrator.RunResult, error)
}

// Config contains scheduler configuration.
type Config struct {
	// DBPath is the SQLite file holding execution history.
	DBPath string

	// HistoryLimit caps the executions kept per schedule.
	HistoryLimit int

	// ScheduleDir is an optional directory of schedule YAML files, rescanned
	// every ScanInterval.
	ScheduleDir  string
	ScanInterval time.Duration

	Runner Runner
	Logger *zap.Logger
}

// DefaultScanInterval is how often ScheduleDir is rescanned.
const DefaultScanInterval = 2 * time.Second

// Scheduler manages cron-based script execution.
type Scheduler struct {
	mu          sync.RWMutex
	schedules   map[string]*Schedule
	running     map[string]string // schedule -> execution id
	cronEngine  *cron.Cron
	cronEntries map[string]cron.EntryID

	store  *Store
	runner Runner
	logger *zap.Logger
	loader *Loader
	config Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler and opens its store.
func NewScheduler(ctx context.Context, config Config) (*Scheduler, error) {
	if config.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultScanInterval
	}

	store, err := NewStore(ctx, config.DBPath, config.HistoryLimit, config.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	s := &Scheduler{
		schedules:   make(map[string]*Schedule),
		running:     make(map[string]string),
		cronEngine:  cron.New(),
		cronEntries: make(map[string]cron.EntryID),
		store:       store,
		runner:      config.Runner,
		logger:      config.Logger,
		config:      config,
		stopCh:      make(chan struct{}),
	}
	if config.ScheduleDir != "" {
		s.loader = NewLoader(config.ScheduleDir, s, config.Logger)
	}
	return s, nil
}

// Load registers the schedules of the schedule directory, if one is set.
func (s *Scheduler) Load(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}
	return s.loader.ScanDirectory(ctx)
}

// Start loads the schedule directory and starts the cron engine.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	if s.loader != nil {
		s.wg.Add(1)
		go s.watchScheduleDir(ctx)
	}
	s.cronEngine.Start()

	s.mu.RLock()
	count := len(s.schedules)
	s.mu.RUnlock()
	s.logger.Info("Scheduler started", zap.Int("schedules", count))
	return nil
}

// Stop stops the cron engine, waits for running executions until ctx is
// done, and closes the store.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		cronCtx := s.cronEngine.Stop()
		s.wg.Wait()

		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
			s.logger.Warn("Scheduler shutdown timeout, some executions may still be running")
		}
		err = s.store.Close()
		s.logger.Info("Scheduler stopped")
	})
	return err
}

// Store returns the execution history store.
func (s *Scheduler) Store() *Store {
	return s.store
}

// Add registers sched, replacing any schedule with the same name.
func (s *Scheduler) Add(sched Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeEntryLocked(sched.Name)
	stored := sched
	s.schedules[sched.Name] = &stored

	if !stored.Disabled {
		entryID, err := s.cronEngine.AddFunc(stored.spec(), func() {
			s.execute(context.Background(), &stored, TriggerCron)
		})
		if err != nil {
			delete(s.schedules, sched.Name)
			return fmt.Errorf("failed to add cron job: %w", err)
		}
		s.cronEntries[sched.Name] = entryID
	}
	schedulesActive.Set(float64(len(s.cronEntries)))

	s.logger.Info("Added schedule",
		zap.String("schedule", sched.Name),
		zap.String("cron", sched.Cron),
		zap.String("timezone", sched.Timezone),
		zap.Bool("disabled", sched.Disabled))
	return nil
}

// Remove unregisters the named schedule. Its history is kept.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.removeEntryLocked(name)
	delete(s.schedules, name)
	schedulesActive.Set(float64(len(s.cronEntries)))

	s.logger.Info("Removed schedule", zap.String("schedule", name))
	return nil
}

func (s *Scheduler) removeEntryLocked(name string) {
	if entryID, ok := s.cronEntries[name]; ok {
		s.cronEngine.Remove(entryID)
		delete(s.cronEntries, name)
	}
}

// Get returns the named schedule with its stats.
func (s *Scheduler) Get(ctx context.Context, name string) (ScheduleStatus, error) {
	s.mu.RLock()
	sched, ok := s.schedules[name]
	s.mu.RUnlock()
	if !ok {
		return ScheduleStatus{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.status(ctx, sched)
}

// List returns every registered schedule, sorted by name.
func (s *Scheduler) List(ctx context.Context) ([]ScheduleStatus, error) {
	s.mu.RLock()
	scheds := make([]*Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		scheds = append(scheds, sched)
	}
	s.mu.RUnlock()
	sort.Slice(scheds, func(i, j int) bool { return scheds[i].Name < scheds[j].Name })

	out := make([]ScheduleStatus, 0, len(scheds))
	for _, sched := range scheds {
		st, err := s.status(ctx, sched)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Scheduler) status(ctx context.Context, sched *Schedule) (ScheduleStatus, error) {
	stats, err := s.store.Stats(ctx, sched.Name)
	if err != nil {
		return ScheduleStatus{}, err
	}
	st := ScheduleStatus{Schedule: *sched, Stats: stats}

	s.mu.RLock()
	_, st.Running = s.running[sched.Name]
	s.mu.RUnlock()

	if !sched.Disabled {
		if next, err := sched.Next(time.Now()); err == nil {
			st.NextRunAt = next
		}
	}
	return st, nil
}

// History returns recent executions of the named schedule, newest first.
func (s *Scheduler) History(ctx context.Context, name string, limit int) ([]Execution, error) {
	return s.store.History(ctx, name, limit)
}

// TriggerNow runs the named schedule immediately and waits for the result.
// A skip-if-running schedule with a run in progress returns ErrAlreadyRunning.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) (*Execution, error) {
	s.mu.RLock()
	sched, ok := s.schedules[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	exec := s.execute(ctx, sched, TriggerManual)
	if exec.Status == StatusSkipped {
		return exec, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	return exec, nil
}

// execute runs sched once in execution mode and records the outcome.
func (s *Scheduler) execute(ctx context.Context, sched *Schedule, trigger Trigger) *Execution {
	exec := &Execution{
		ID:        uuid.New().String(),
		Schedule:  sched.Name,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}

	s.mu.Lock()
	current, busy := s.running[sched.Name]
	if busy && sched.SkipIfRunning {
		s.mu.Unlock()
		s.logger.Info("Skipping execution, previous still running",
			zap.String("schedule", sched.Name),
			zap.String("current_execution_id", current))
		exec.Status = StatusSkipped
		exec.Error = "previous execution " + current + " still running"
		if trigger == TriggerCron {
			s.record(exec)
		}
		return exec
	}
	s.running[sched.Name] = exec.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.running[sched.Name] == exec.ID {
			delete(s.running, sched.Name)
		}
		s.mu.Unlock()
	}()

	s.logger.Info("Executing scheduled script",
		zap.String("schedule", sched.Name),
		zap.String("execution_id", exec.ID),
		zap.String("trigger", string(trigger)))

	if sched.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(sched.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	source, err := sched.Source()
	if err == nil {
		var res *orchestrator.RunResult
		res, err = s.runner.RunScript(ctx, orchestrator.RunRequest{
			Script:     source,
			DataSource: sched.DataSource,
			Mode:       params.ModeExecution,
			Params:     sched.Params,
		})
		if err == nil {
			exec.RunID = res.RunID
			exec.Chart = res.Chart
			if res.Failed {
				exec.Status = StatusFailed
				exec.Error = "run failed"
				if res.Error != nil {
					exec.Error = res.Error.Error()
				}
			}
		}
	}
	if err != nil {
		exec.Status = StatusFailed
		exec.Error = err.Error()
	}
	if exec.Status == "" {
		exec.Status = StatusSuccess
	}
	exec.DurationMs = time.Since(exec.StartedAt).Milliseconds()

	if exec.Status == StatusFailed {
		s.logger.Error("Scheduled execution failed",
			zap.String("schedule", sched.Name),
			zap.String("execution_id", exec.ID),
			zap.String("error", exec.Error))
	} else {
		s.logger.Info("Scheduled execution succeeded",
			zap.String("schedule", sched.Name),
			zap.String("execution_id", exec.ID),
			zap.Int64("duration_ms", exec.DurationMs))
	}
	s.record(exec)
	return exec
}

// record persists exec. A run that outlived its context still gets recorded.
func (s *Scheduler) record(exec *Execution) {
	executionsTotal.WithLabelValues(exec.Schedule, string(exec.Trigger), string(exec.Status)).Inc()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.RecordExecution(ctx, exec); err != nil {
		s.logger.Error("Failed to record execution",
			zap.String("schedule", exec.Schedule),
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}
}

// watchScheduleDir rescans the schedule directory until Stop.
func (s *Scheduler) watchScheduleDir(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.loader.ScanDirectory(ctx); err != nil {
				s.logger.Error("Failed to scan schedule directory", zap.Error(err))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
