// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/pkg/scheduler"
)

// ScheduleService lists, inspects and triggers scheduled scripts.
type ScheduleService interface {
	List(ctx context.Context) ([]scheduler.ScheduleStatus, error)
	History(ctx context.Context, name string, limit int) ([]scheduler.Execution, error)
	TriggerNow(ctx context.Context, name string) (*scheduler.Execution, error)
}

// SetScheduler enables the /v1/schedules endpoints. It must be called before
// Start.
func (h *HTTPServer) SetScheduler(s ScheduleService) {
	h.schedules = s
	h.httpServer.Handler = h.Handler()
}

func (h *HTTPServer) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := h.schedules.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": list})
}

func (h *HTTPServer) handleScheduleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history, err := h.schedules.History(r.Context(), r.PathValue("name"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []scheduler.Execution{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"executions": history})
}

func (h *HTTPServer) handleTriggerSchedule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exec, err := h.schedules.TriggerNow(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Debug("schedule triggered",
		zap.String("schedule", name),
		zap.String("execution_id", exec.ID),
		zap.String("status", string(exec.Status)),
	)
	writeJSON(w, http.StatusOK, exec)
}
