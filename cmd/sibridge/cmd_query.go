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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/sibridge/pkg/sqlresult"
)

var (
	querySource string
	queryOutput string
	queryFile   string
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run SQL against a data source and print the visible result",
	Long: `Run one or more SQL statements against a data source.

Only the last statement's outcome is printed: its rows, or a single status
row for a data-modifying statement.`,
	Example: `  sibridge query --source sales "SELECT region, SUM(amount) FROM sales GROUP BY region"
  sibridge query --source sales --output json "UPDATE sales SET amount = 0 WHERE region = 'East'"
  sibridge query --source sales --output xlsx --file totals.xlsx "SELECT * FROM sales"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&querySource, "source", "s", "", "Data source handle (required)")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "table", "Output format (table, json, yaml, xlsx)")
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Write output to a file instead of stdout (required for xlsx)")
	_ = queryCmd.MarkFlagRequired("source")
}

func runQuery(cmd *cobra.Command, args []string) error {
	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	backend, err := catalog.Backend(cmd.Context(), querySource)
	if err != nil {
		return err
	}
	batch, err := backend.ExecuteBatch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	visible := sqlresult.Normalize(batch)

	if queryFile == "" {
		if queryOutput == "xlsx" {
			return fmt.Errorf("xlsx output requires --file")
		}
		return writeVisible(cmd.OutOrStdout(), visible, queryOutput)
	}

	f, err := os.Create(queryFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeVisible(f, visible, queryOutput); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", len(visible.Rows), queryFile)
	return nil
}

func writeVisible(w io.Writer, v sqlresult.VisibleResult, format string) error {
	switch format {
	case "table":
		_, err := fmt.Fprintln(w, sqlresult.Render(v))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(visibleNode(v))
	case "xlsx":
		return sqlresult.WriteXLSX(w, v, "")
	default:
		return fmt.Errorf("unknown output format %q (must be: table, json, yaml, xlsx)", format)
	}
}

// visibleNode builds a YAML document that keeps column order in every row.
func visibleNode(v sqlresult.VisibleResult) *yaml.Node {
	columns := &yaml.Node{Kind: yaml.SequenceNode}
	for _, c := range v.Columns {
		columns.Content = append(columns.Content, scalar(c))
	}

	rows := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range v.Rows {
		row := &yaml.Node{Kind: yaml.MappingNode}
		for i, c := range r.Columns() {
			val := &yaml.Node{}
			if err := val.Encode(r.Values()[i]); err != nil {
				val = scalar(sqlresult.FormatValue(r.Values()[i]))
			}
			row.Content = append(row.Content, scalar(c), val)
		}
		rows.Content = append(rows.Content, row)
	}

	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: []*yaml.Node{scalar("columns"), columns, scalar("rows"), rows},
	}
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
