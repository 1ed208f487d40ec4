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
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/sibridge/internal/log"
	"github.com/teradata-labs/sibridge/pkg/orchestrator"
	"github.com/teradata-labs/sibridge/pkg/params"
	"github.com/teradata-labs/sibridge/pkg/sqlresult"
)

var (
	runMode   string
	runSource string
	runParams []string
	runJSON   bool
)

var runCmd = &cobra.Command{
	Use:   "run <script-file>",
	Short: "Run a script in schema or execution mode",
	Long: `Run a script in an isolated runner process.

Use "-" to read the script from stdin. In schema mode the declared parameters
are printed; in execution mode the chart is printed. Script output is printed
first in both modes.`,
	Example: `  sibridge run report.star --mode schema --source sales
  sibridge run report.star --source sales --param region=East --param top=5`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", string(params.ModeExecution), "Run mode (schema, execution)")
	runCmd.Flags().StringVarP(&runSource, "source", "s", "", "Data source handle")
	runCmd.Flags().StringArrayVarP(&runParams, "param", "p", nil, "Parameter value as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the full result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	src, err := readScript(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	values, err := parseParams(runParams)
	if err != nil {
		return err
	}

	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	orch, err := orchestrator.New(config.OrchestratorConfig(), catalog, log.Logger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := orch.RunScript(ctx, orchestrator.RunRequest{
		Script:     src,
		DataSource: runSource,
		Mode:       params.Mode(runMode),
		Params:     values,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if err := printResult(out, res); err != nil {
		return err
	}

	if res.Failed {
		return res.Error
	}
	return nil
}

func readScript(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		// #nosec G304 -- script path is a command line argument
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

// parseParams turns key=value flags into parameter values. Values that parse
// as JSON keep their JSON type; anything else is a string.
func parseParams(pairs []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[key] = v
	}
	return values, nil
}

func printResult(w io.Writer, res *orchestrator.RunResult) error {
	for _, line := range res.Logs {
		fmt.Fprintln(w, line)
	}

	switch {
	case res.Schema != nil:
		fmt.Fprintln(w, sqlresult.Render(schemaTable(res.Schema)))
	case len(res.Chart) > 0:
		var pretty strings.Builder
		var v interface{}
		if err := json.Unmarshal(res.Chart, &v); err != nil {
			return fmt.Errorf("invalid chart payload: %w", err)
		}
		enc := json.NewEncoder(&pretty)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return err
		}
		fmt.Fprint(w, pretty.String())
	}
	return nil
}

// schemaTable lays a schema out as one row per parameter.
func schemaTable(s *params.Schema) sqlresult.VisibleResult {
	columns := []string{"key", "kind", "label", "default", "range", "options"}
	result := sqlresult.VisibleResult{Columns: columns, Rows: []sqlresult.Row{}}
	for _, spec := range s.Specs() {
		var rng, options string
		switch spec.Kind {
		case params.KindSlider:
			rng = fmt.Sprintf("%v..%v step %v (%s)", spec.Min, spec.Max, spec.Step, spec.ValueType)
		case params.KindSelect:
			parts := make([]string, len(spec.Options))
			for i, o := range spec.Options {
				parts[i] = sqlresult.FormatValue(o)
			}
			options = strings.Join(parts, ", ")
		}
		row, err := sqlresult.NewRow(columns, []interface{}{spec.Key, string(spec.Kind), spec.Label, spec.Default, rng, options})
		if err != nil {
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}
