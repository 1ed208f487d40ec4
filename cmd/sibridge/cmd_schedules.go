// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/sibridge/internal/log"
	"github.com/teradata-labs/sibridge/pkg/orchestrator"
	"github.com/teradata-labs/sibridge/pkg/scheduler"
	"github.com/teradata-labs/sibridge/pkg/sqlresult"
)

var (
	schedulesLimit int
	schedulesJSON  bool
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List scheduled scripts",
	Long: heredoc.Doc(`
		List the scheduled scripts from scheduler.schedules and the schedule
		directory (scheduler.dir) with their recorded execution stats.

		Schedules fire while "sibridge serve" is running.
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
			list, err := s.List(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sqlresult.Render(schedulesTable(list)))
			return err
		})
	},
}

var schedulesHistoryCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show recent executions of a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
			history, err := s.History(ctx, args[0], schedulesLimit)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sqlresult.Render(historyTable(history)))
			return err
		})
	},
}

var schedulesRunCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Run a schedule now and record the execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) error {
			exec, err := s.TriggerNow(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if schedulesJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(exec); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%s %s in %dms (run %s)\n", exec.Schedule, exec.Status, exec.DurationMs, exec.RunID)
			}
			if exec.Status == scheduler.StatusFailed {
				return fmt.Errorf("schedule %s failed: %s", exec.Schedule, exec.Error)
			}
			return nil
		})
	},
}

func init() {
	schedulesHistoryCmd.Flags().IntVarP(&schedulesLimit, "limit", "n", 20, "Maximum executions to show")
	schedulesRunCmd.Flags().BoolVar(&schedulesJSON, "json", false, "Print the execution as JSON")

	schedulesCmd.AddCommand(schedulesHistoryCmd)
	schedulesCmd.AddCommand(schedulesRunCmd)
}

// openScheduler creates a scheduler over runner holding the configured
// schedules. Directory schedules are added by Load or Start.
func openScheduler(ctx context.Context, runner scheduler.Runner) (*scheduler.Scheduler, error) {
	s, err := scheduler.NewScheduler(ctx, config.SchedulerConfig(runner))
	if err != nil {
		return nil, err
	}
	for _, sched := range config.Scheduler.Schedules {
		if err := s.Add(sched); err != nil {
			_ = s.Stop(ctx)
			return nil, err
		}
	}
	return s, nil
}

// withScheduler runs fn against a loaded, not started, scheduler.
func withScheduler(ctx context.Context, fn func(context.Context, *scheduler.Scheduler) error) error {
	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	orch, err := orchestrator.New(config.OrchestratorConfig(), catalog, log.Logger())
	if err != nil {
		return err
	}
	s, err := openScheduler(ctx, orch)
	if err != nil {
		return err
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if err := s.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, s)
}

func schedulesTable(list []scheduler.ScheduleStatus) sqlresult.VisibleResult {
	columns := []string{"name", "cron", "timezone", "next_run", "last_status", "runs", "failed"}
	result := sqlresult.VisibleResult{Columns: columns, Rows: make([]sqlresult.Row, 0, len(list))}
	for _, st := range list {
		next := "disabled"
		if !st.Schedule.Disabled {
			next = formatTime(st.NextRunAt)
		}
		row, _ := sqlresult.NewRow(columns, []interface{}{
			st.Schedule.Name, st.Schedule.Cron, st.Schedule.Timezone, next,
			string(st.Stats.LastStatus), st.Stats.Total, st.Stats.Failed,
		})
		result.Rows = append(result.Rows, row)
	}
	return result
}

func historyTable(history []scheduler.Execution) sqlresult.VisibleResult {
	columns := []string{"started_at", "trigger", "status", "duration_ms", "run_id", "error"}
	result := sqlresult.VisibleResult{Columns: columns, Rows: make([]sqlresult.Row, 0, len(history))}
	for _, e := range history {
		row, _ := sqlresult.NewRow(columns, []interface{}{
			formatTime(e.StartedAt), string(e.Trigger), string(e.Status), e.DurationMs, e.RunID, e.Error,
		})
		result.Rows = append(result.Rows, row)
	}
	return result
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}
