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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/internal/log"
	sibconfig "github.com/teradata-labs/sibridge/pkg/config"
	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/orchestrator"
	"github.com/teradata-labs/sibridge/pkg/scheduler"
	"github.com/teradata-labs/sibridge/pkg/server"
	sibtls "github.com/teradata-labs/sibridge/pkg/tls"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sibridge HTTP server",
	Long: heredoc.Doc(`
		Start the sibridge HTTP server.

		Set server.tls.mode (self-signed, manual or letsencrypt) to serve HTTPS.

		Endpoints:
		  POST /v1/run                         run a script (schema or execution mode)
		  POST /v1/query                       run SQL against a data source
		  GET  /v1/schedules                   list scheduled scripts
		  GET  /v1/schedules/{name}/history    recent executions of a schedule
		  POST /v1/schedules/{name}/run        run a schedule now
		  GET  /metrics                        Prometheus metrics
		  GET  /healthz                        health check

		Press Ctrl+C to gracefully shutdown.
	`),
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "HTTP server host")
	serveCmd.Flags().Int("port", 8642, "HTTP server port")
	serveCmd.Flags().String("tls-mode", "", "TLS certificate source: self-signed, manual or letsencrypt")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.tls.mode", serveCmd.Flags().Lookup("tls-mode"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.Logger()
	defer func() { _ = log.Sync() }()

	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	orch, err := orchestrator.New(config.OrchestratorConfig(), catalog, logger)
	if err != nil {
		return err
	}
	orchestrator.RegisterMetrics(prometheus.DefaultRegisterer)
	fabric.RegisterMetrics(prometheus.DefaultRegisterer)

	httpSrv := server.NewHTTPServer(config.Addr(), orch, catalog, logger, config.CORS())

	if config.Scheduler.Enabled {
		sched, err := openScheduler(cmd.Context(), orch)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		scheduler.RegisterMetrics(prometheus.DefaultRegisterer)
		if err := sched.Start(cmd.Context()); err != nil {
			_ = sched.Stop(context.Background())
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = sched.Stop(ctx)
		}()
		httpSrv.SetScheduler(sched)
	}

	var tlsManager *sibtls.Manager
	if config.Server.TLS.Enabled() {
		tlsManager, err = sibtls.NewManager(config.Server.TLS, logger)
		if err != nil {
			return err
		}
		if err := tlsManager.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
		defer func() { _ = tlsManager.Stop(context.Background()) }()

		tlsConfig, err := tlsManager.TLSConfig()
		if err != nil {
			return err
		}
		httpSrv.SetTLSConfig(tlsConfig)
	}

	if config.WatchDataSources && config.DataSourcesFile != "" {
		watcher, err := sibconfig.NewFileWatcher(config.DataSourcesFile, sibconfig.DefaultDebounce, logger, func(string) {
			reloadSources(catalog, logger)
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(cmd.Context()); err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()
	}

	logger.Info("sibridge ready",
		zap.String("addr", config.Addr()),
		zap.String("tls_mode", config.Server.TLS.Mode),
		zap.Strings("data_sources", catalog.Names()),
		zap.String("work_dir", orch.Config().WorkDir),
		zap.Duration("run_timeout", orch.Config().Timeout),
	)

	// Handle graceful shutdown
	go func() {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
		<-sigch
		logger.Info("Shutting down gracefully... (press Ctrl+C again to force)")

		go func() {
			<-sigch
			logger.Warn("Force shutdown requested")
			os.Exit(1)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Stop(ctx); err != nil {
			logger.Warn("Error stopping HTTP server", zap.Error(err))
		} else {
			logger.Info("HTTP server stopped")
		}
	}()

	return httpSrv.Start()
}

// reloadSources re-reads the configured data sources into catalog. A bad file
// leaves the current definitions in place.
func reloadSources(catalog *fabric.Catalog, logger *zap.Logger) {
	sources, err := config.Sources()
	if err == nil {
		err = catalog.Replace(sources)
	}
	if err != nil {
		logger.Error("Data source reload failed, keeping current definitions", zap.Error(err))
		return
	}
	logger.Info("Data sources reloaded", zap.Strings("data_sources", catalog.Names()))
}
