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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/internal/log"
	"github.com/teradata-labs/sibridge/internal/version"
	"github.com/teradata-labs/sibridge/pkg/fabric"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sibridge",
	Short: "Parameterized script execution bridge",
	Long: `sibridge runs analysis scripts in isolated runner processes.

A script declares its parameters (get, slider, select), queries a named SQL
data source and emits a chart. In schema mode a run returns the declared
parameters; in execution mode it returns the chart built from supplied values.`,
	Version:           version.String(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $SIBRIDGE_DATA_DIR/sibridge.yaml)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	// Runner flags
	rootCmd.PersistentFlags().Int("timeout", 60, "Run timeout in seconds")
	rootCmd.PersistentFlags().String("sources-file", "", "YAML file of data sources")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("runner.timeout_seconds", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("data_sources_file", rootCmd.PersistentFlags().Lookup("sources-file"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(schedulesCmd)
	rootCmd.AddCommand(runnerCmd)
}

// initConfig reads in config file and ENV variables if set and installs the
// process logger.
func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger, err := log.New(config.Logging.Level, config.Logging.Format)
	if err != nil {
		return err
	}
	log.SetLogger(logger)
	return nil
}

// openCatalog builds the data source catalog from the loaded config.
func openCatalog() (*fabric.Catalog, error) {
	sources, err := config.Sources()
	if err != nil {
		return nil, err
	}
	catalog, err := fabric.NewCatalog(sources, log.Logger())
	if err != nil {
		return nil, err
	}
	log.Debug("data sources loaded", zap.Int("count", len(sources)))
	return catalog, nil
}
