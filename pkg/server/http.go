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

// Package server exposes the execution bridge and the query API over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/internal/version"
	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/orchestrator"
	"github.com/teradata-labs/sibridge/pkg/sqlresult"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// ScriptRunner runs one script request.
type ScriptRunner interface {
	RunScript(ctx context.Context, req orchestrator.RunRequest) (*orchestrator.RunResult, error)
}

// BackendProvider returns the shared backend for a data source handle.
type BackendProvider interface {
	Backend(ctx context.Context, handle string) (fabric.ExecutionBackend, error)
}

// CORSConfig holds CORS configuration for the HTTP server.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns a permissive CORS configuration for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
	}
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	DataSource string `json:"data_source"`
	SQL        string `json:"sql"`
}

// HTTPServer serves the run and query endpoints plus health and metrics.
type HTTPServer struct {
	runner     ScriptRunner
	backends   BackendProvider
	schedules  ScheduleService
	httpServer *http.Server
	logger     *zap.Logger
	corsConfig CORSConfig
}

// NewHTTPServer creates an HTTP server listening on addr.
func NewHTTPServer(addr string, runner ScriptRunner, backends BackendProvider, logger *zap.Logger, corsConfig CORSConfig) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HTTPServer{
		runner:     runner,
		backends:   backends,
		logger:     logger,
		corsConfig: corsConfig,
	}
	h.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // runs can take up to the run timeout
		IdleTimeout:       120 * time.Second,
	}
	return h
}

// Handler returns the routed handler, wrapped with CORS when enabled.
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": version.String()})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/run", h.handleRun)
	mux.HandleFunc("POST /v1/query", h.handleQuery)
	if h.schedules != nil {
		mux.HandleFunc("GET /v1/schedules", h.handleListSchedules)
		mux.HandleFunc("GET /v1/schedules/{name}/history", h.handleScheduleHistory)
		mux.HandleFunc("POST /v1/schedules/{name}/run", h.handleTriggerSchedule)
	}

	if !h.corsConfig.Enabled {
		return mux
	}
	return h.corsMiddleware(mux)
}

// SetTLSConfig makes the server speak HTTPS. It must be called before Start.
func (h *HTTPServer) SetTLSConfig(cfg *tls.Config) {
	h.httpServer.TLSConfig = cfg
}

// Start listens on the configured address and serves until Stop is called.
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("HTTP server failed to listen: %w", err)
	}
	return h.Serve(ln)
}

// Serve serves on ln until Stop is called.
func (h *HTTPServer) Serve(ln net.Listener) error {
	tlsEnabled := h.httpServer.TLSConfig != nil
	h.logger.Info("Starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", tlsEnabled),
	)

	var err error
	if tlsEnabled {
		// Certificates come from TLSConfig.GetCertificate.
		err = h.httpServer.ServeTLS(ln, "", "")
	} else {
		err = h.httpServer.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server")
	return h.httpServer.Shutdown(ctx)
}

func (h *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.RunRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if strings.TrimSpace(req.Script) == "" {
		writeError(w, http.StatusBadRequest, "script is required")
		return
	}

	res, err := h.runner.RunScript(r.Context(), req)
	switch {
	case errors.Is(err, fabric.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Debug("run served",
		zap.String("run_id", res.RunID),
		zap.String("outcome", res.Outcome()),
	)
	// A failed script is still a served run; the result carries the failure.
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.DataSource == "" || strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "data_source and sql are required")
		return
	}

	backend, err := h.backends.Backend(r.Context(), req.DataSource)
	switch {
	case errors.Is(err, fabric.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	batch, err := backend.ExecuteBatch(r.Context(), req.SQL)
	if err != nil {
		h.logger.Debug("query failed", zap.String("data_source", req.DataSource), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sqlresult.Normalize(batch))
}

func (h *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowedOrigin := h.getAllowedOrigin(r.Header.Get("Origin")); allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		}
		if h.corsConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if len(h.corsConfig.AllowedMethods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(h.corsConfig.AllowedMethods, ", "))
		}
		if len(h.corsConfig.AllowedHeaders) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(h.corsConfig.AllowedHeaders, ", "))
		}
		if h.corsConfig.MaxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", h.corsConfig.MaxAge))
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getAllowedOrigin checks if the origin is allowed and returns it, or empty string if not
func (h *HTTPServer) getAllowedOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range h.corsConfig.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == origin {
			return origin
		}
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
