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
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/orchestrator"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Setenv("SIBRIDGE_DATA_DIR", t.TempDir())

	cfg, err := LoadConfig(writeFile(t, t.TempDir(), "sibridge.yaml", "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8642, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, int(orchestrator.DefaultTimeout/time.Second), cfg.Runner.TimeoutSeconds)
	assert.Equal(t, filepath.Join(cfg.DataDir, "runs"), cfg.Runner.WorkDir)
	assert.True(t, cfg.Server.CORS.Enabled)
	assert.False(t, cfg.Server.TLS.Enabled())
	assert.Empty(t, cfg.DataSourcesFile)
	assert.True(t, cfg.WatchDataSources)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, filepath.Join(cfg.DataDir, "scheduler.db"), cfg.Scheduler.DBPath)
	assert.Equal(t, filepath.Join(cfg.DataDir, "schedules"), cfg.Scheduler.Dir)
	assert.Equal(t, 100, cfg.Scheduler.HistoryLimit)
}

func TestLoadConfig_File(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Setenv("SIBRIDGE_DATA_DIR", dir)

	path := writeFile(t, dir, "sibridge.yaml", `
server:
  port: 9000
  tls:
    mode: self-signed
    self_signed:
      hostnames: [bridge.local]
      validity_days: 30
logging:
  level: debug
  format: json
runner:
  interpreter: /usr/local/bin/sibridge
  args: [runner]
  timeout_seconds: 5
data_sources:
  sales:
    type: SQLite
    dsn: /tmp/sales.db
    description: Sales mart
scheduler:
  history_limit: 10
  schedules:
    - name: nightly
      cron: "0 2 * * *"
      timezone: UTC
      script_file: /srv/scripts/nightly.star
      data_source: sales
      params:
        region: East
      skip_if_running: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.True(t, cfg.Server.TLS.Enabled())
	assert.Equal(t, []string{"bridge.local"}, cfg.Server.TLS.SelfSigned.Hostnames)
	assert.Equal(t, 30, cfg.Server.TLS.SelfSigned.ValidityDays)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.Len(t, cfg.Scheduler.Schedules, 1)
	nightly := cfg.Scheduler.Schedules[0]
	assert.Equal(t, "nightly", nightly.Name)
	assert.Equal(t, "/srv/scripts/nightly.star", nightly.ScriptFile)
	assert.Equal(t, "East", nightly.Params["region"])
	assert.True(t, nightly.SkipIfRunning)
	require.NoError(t, nightly.Validate())
	assert.Equal(t, 10, cfg.SchedulerConfig(nil).HistoryLimit)

	oc := cfg.OrchestratorConfig()
	assert.Equal(t, "/usr/local/bin/sibridge", oc.Interpreter)
	assert.Equal(t, []string{"runner"}, oc.Args)
	assert.Equal(t, 5*time.Second, oc.Timeout)

	sources, err := cfg.Sources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, fabric.SourceConfig{Name: "sales", Type: "sqlite", DSN: "/tmp/sales.db", Description: "Sales mart"}, sources[0])
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("SIBRIDGE_DATA_DIR", t.TempDir())
	t.Setenv("SIBRIDGE_RUNNER_TIMEOUT_SECONDS", "7")
	t.Setenv("SIBRIDGE_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig(writeFile(t, t.TempDir(), "sibridge.yaml", "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Runner.TimeoutSeconds)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	viper.Reset()
	t.Setenv("SIBRIDGE_DATA_DIR", t.TempDir())

	_, err := LoadConfig(writeFile(t, t.TempDir(), "sibridge.yaml", "server: [unclosed\n"))
	assert.Error(t, err)
}

func TestOrchestratorConfig_DefaultInterpreter(t *testing.T) {
	cfg := &Config{Runner: RunnerConfig{Args: []string{"ignored"}, TimeoutSeconds: 3}}
	oc := cfg.OrchestratorConfig()
	assert.Empty(t, oc.Interpreter)
	assert.Nil(t, oc.Args, "the orchestrator picks the runner subcommand itself")
	assert.Equal(t, 3*time.Second, oc.Timeout)
}

func TestConfig_Sources(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sources.yaml", `apiVersion: sibridge/v1
kind: DataSources
sources:
  - name: warehouse
    type: postgres
    dsn: postgres://localhost/warehouse
`)

	cfg := &Config{
		DataSources: map[string]fabric.SourceConfig{
			"b": {Type: "mysql", DSN: "user@tcp(localhost)/b"},
			"a": {Name: "ignored", Type: "sqlite", DSN: ":memory:"},
		},
		DataSourcesFile: file,
	}
	sources, err := cfg.Sources()
	require.NoError(t, err)

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"a", "b", "warehouse"}, names)
}

func TestConfig_SourcesInvalid(t *testing.T) {
	cfg := &Config{DataSources: map[string]fabric.SourceConfig{
		"bad": {Type: "oracle", DSN: "x"},
	}}
	_, err := cfg.Sources()
	assert.ErrorIs(t, err, fabric.ErrUnsupportedType)

	cfg = &Config{DataSourcesFile: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err = cfg.Sources()
	assert.Error(t, err)
}
