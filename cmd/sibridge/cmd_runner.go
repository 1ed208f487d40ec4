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
	"os"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/sibridge/pkg/script"
)

// runnerCmd is the entry point of runner processes. It reads its envelope
// from the environment and never loads the config file.
var runnerCmd = &cobra.Command{
	Use:                "runner <unit-file>",
	Short:              "Execute a script unit (internal)",
	Hidden:             true,
	DisableFlagParsing: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(script.Main(args, os.Stdout, os.Stderr))
	},
}
