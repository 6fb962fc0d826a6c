// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	DatabaseConnected bool    `json:"database_connected"`
	Uptime            float64 `json:"uptime"`
}

// Health reports liveness and datastore connectivity. A failed ping returns
// 503 with status "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	dbConnected := h.deps.DB != nil && h.deps.DB.Ping(ctx) == nil

	health := HealthStatus{
		Status:            "healthy",
		Version:           h.cfg.Version,
		DatabaseConnected: dbConnected,
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	status := http.StatusOK
	if !dbConnected {
		health.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	respondSuccess(w, status, health, start)
}
