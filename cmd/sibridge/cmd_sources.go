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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/sqlresult"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured data sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := config.Sources()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), sqlresult.Render(sourcesTable(sources)))
		return err
	},
}

var sourcesSetSecretCmd = &cobra.Command{
	Use:   "set-secret [key]",
	Short: "Store a data source DSN in the system keyring",
	Long: `Store a DSN in the system keyring so it stays out of config files.

Reference it from a data source with dsn: keyring (the key is the source
name) or dsn: keyring:<key>. Input is hidden when read from a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), args[0])
		if err != nil {
			return err
		}
		if err := fabric.SaveSecret(args[0], dsn); err != nil {
			return fmt.Errorf("failed to save to keyring: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to system keyring\n", args[0])
		return err
	},
}

var sourcesDeleteSecretCmd = &cobra.Command{
	Use:   "delete-secret [key]",
	Short: "Remove a data source DSN from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fabric.DeleteSecret(args[0]); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from system keyring\n", args[0])
		return err
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesSetSecretCmd)
	sourcesCmd.AddCommand(sourcesDeleteSecretCmd)
}

// readSecret reads one secret line from in, without echo when in is a terminal.
func readSecret(in io.Reader, prompt io.Writer, key string) (string, error) {
	var secret string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "Enter DSN for %s (input hidden): ", key)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		secret = string(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		secret = line
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	return secret, nil
}

// sourcesTable lists sources without their DSNs, which may carry credentials.
func sourcesTable(sources []fabric.SourceConfig) sqlresult.VisibleResult {
	columns := []string{"name", "type", "description"}
	result := sqlresult.VisibleResult{Columns: columns, Rows: make([]sqlresult.Row, 0, len(sources))}
	for _, src := range sources {
		row, _ := sqlresult.NewRow(columns, []interface{}{src.Name, src.Type, src.Description})
		result.Rows = append(result.Rows, row)
	}
	return result
}
