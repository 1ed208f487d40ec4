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
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teradata-labs/sibridge/internal/log"
	sibconfig "github.com/teradata-labs/sibridge/pkg/config"
	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/orchestrator"
	"github.com/teradata-labs/sibridge/pkg/scheduler"
	"github.com/teradata-labs/sibridge/pkg/server"
	sibtls "github.com/teradata-labs/sibridge/pkg/tls"
)

// DefaultConfigFileName is searched for in the data directory, the current
// directory and /etc/sibridge/.
const DefaultConfigFileName = "sibridge"

// Config is the sibridge configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Runner  RunnerConfig  `mapstructure:"runner"`

	Scheduler SchedulerConfig `mapstructure:"scheduler"`

	// DataSources maps a handle to its definition. The handle is the source
	// name; a name inside the entry is ignored.
	DataSources map[string]fabric.SourceConfig `mapstructure:"data_sources"`

	// DataSourcesFile is an optional YAML file of additional data sources.
	DataSourcesFile string `mapstructure:"data_sources_file"`

	// WatchDataSources reloads the data source file on change while serving.
	WatchDataSources bool `mapstructure:"watch_data_sources"`

	// DataDir is computed from SIBRIDGE_DATA_DIR or ~/.sibridge.
	DataDir string `mapstructure:"-"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string     `mapstructure:"host"`
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`

	// TLS is disabled unless tls.mode is set.
	TLS sibtls.Config `mapstructure:"tls"`
}

// CORSConfig mirrors server.CORSConfig for the config file.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// RunnerConfig configures script runner processes.
type RunnerConfig struct {
	// Interpreter defaults to the sibridge binary itself.
	Interpreter    string   `mapstructure:"interpreter"`
	Args           []string `mapstructure:"args"`
	WorkDir        string   `mapstructure:"work_dir"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// SchedulerConfig configures scheduled script runs.
type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	Dir          string `mapstructure:"dir"` // directory of schedule YAML files
	HistoryLimit int    `mapstructure:"history_limit"`

	Schedules []scheduler.Schedule `mapstructure:"schedules"`
}

// LoadConfig loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Config file
// 3. Environment variables
// 4. Defaults (lowest priority)
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(sibconfig.GetDataDir())   // respects SIBRIDGE_DATA_DIR
		viper.AddConfigPath(".")                   // Current directory
		viper.AddConfigPath("/etc/sibridge/")      // System-wide
		viper.SetConfigName(DefaultConfigFileName) // sibridge.yaml
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	viper.SetEnvPrefix("SIBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = sibconfig.GetDataDir()
	if cfg.Runner.WorkDir != "" {
		cfg.Runner.WorkDir = sibconfig.ExpandPath(cfg.Runner.WorkDir)
	}
	if cfg.DataSourcesFile != "" {
		cfg.DataSourcesFile = sibconfig.ExpandPath(cfg.DataSourcesFile)
	}
	if cfg.Scheduler.DBPath != "" {
		cfg.Scheduler.DBPath = sibconfig.ExpandPath(cfg.Scheduler.DBPath)
	}
	if cfg.Scheduler.Dir != "" {
		cfg.Scheduler.Dir = sibconfig.ExpandPath(cfg.Scheduler.Dir)
	}
	for i := range cfg.Scheduler.Schedules {
		if f := cfg.Scheduler.Schedules[i].ScriptFile; f != "" {
			cfg.Scheduler.Schedules[i].ScriptFile = sibconfig.ExpandPath(f)
		}
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8642)

	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})
	viper.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("server.cors.allowed_headers", []string{"*"})
	viper.SetDefault("server.cors.allow_credentials", false) // MUST be false with wildcard origins
	viper.SetDefault("server.cors.max_age", 86400)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("runner.interpreter", "")
	viper.SetDefault("runner.args", []string{})
	viper.SetDefault("runner.work_dir", sibconfig.GetWorkDir())
	viper.SetDefault("runner.timeout_seconds", int(orchestrator.DefaultTimeout/time.Second))

	viper.SetDefault("data_sources_file", "")
	viper.SetDefault("watch_data_sources", true)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.db_path", filepath.Join(sibconfig.GetDataDir(), "scheduler.db"))
	viper.SetDefault("scheduler.dir", sibconfig.GetSubDir("schedules"))
	viper.SetDefault("scheduler.history_limit", scheduler.DefaultHistoryLimit)
}

// Sources returns every configured data source: inline entries first, sorted
// by handle, then the entries of the data source file.
func (c *Config) Sources() ([]fabric.SourceConfig, error) {
	handles := make([]string, 0, len(c.DataSources))
	for h := range c.DataSources {
		handles = append(handles, h)
	}
	sort.Strings(handles)

	sources := make([]fabric.SourceConfig, 0, len(handles))
	for _, h := range handles {
		src := c.DataSources[h]
		src.Name = h
		src.Type = strings.ToLower(src.Type)
		if err := fabric.ValidateSource(src); err != nil {
			return nil, fmt.Errorf("data_sources.%s: %w", h, err)
		}
		sources = append(sources, src)
	}

	if c.DataSourcesFile != "" {
		fromFile, err := fabric.LoadSources(c.DataSourcesFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, fromFile...)
	}
	return sources, nil
}

// OrchestratorConfig converts the runner section.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	cfg := orchestrator.Config{
		Interpreter: c.Runner.Interpreter,
		WorkDir:     c.Runner.WorkDir,
		Timeout:     time.Duration(c.Runner.TimeoutSeconds) * time.Second,
	}
	// Without an interpreter the orchestrator picks the runner subcommand.
	if c.Runner.Interpreter != "" {
		cfg.Args = c.Runner.Args
	}
	return cfg
}

// CORS converts the CORS section.
func (c *Config) CORS() server.CORSConfig {
	return server.CORSConfig{
		Enabled:          c.Server.CORS.Enabled,
		AllowedOrigins:   c.Server.CORS.AllowedOrigins,
		AllowedMethods:   c.Server.CORS.AllowedMethods,
		AllowedHeaders:   c.Server.CORS.AllowedHeaders,
		AllowCredentials: c.Server.CORS.AllowCredentials,
		MaxAge:           c.Server.CORS.MaxAge,
	}
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SchedulerConfig converts the scheduler section for runner.
func (c *Config) SchedulerConfig(runner scheduler.Runner) scheduler.Config {
	return scheduler.Config{
		DBPath:       c.Scheduler.DBPath,
		HistoryLimit: c.Scheduler.HistoryLimit,
		ScheduleDir:  c.Scheduler.Dir,
		Runner:       runner,
		Logger:       log.Logger(),
	}
}
