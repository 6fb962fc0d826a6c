// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/notevault/internal/backup"
	"github.com/tomtom215/notevault/internal/database"
)

// StartBackupRequest is the body of POST /api/v1/tasks/backup/start.
type StartBackupRequest struct {
	Schedule       string `json:"schedule" validate:"required,cron"`
	RunImmediately bool   `json:"runImmediately"`
}

// ScheduleBackupRequest is the body of PUT /api/v1/tasks/backup/schedule.
type ScheduleBackupRequest struct {
	Schedule string `json:"schedule" validate:"required,cron"`
}

// BackupStatus returns the task row joined with the timer state.
func (h *Handler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status, err := h.deps.Tasks.Status(r.Context())
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, status, start)
}

// BackupStart sets the schedule and starts the timer.
func (h *Handler) BackupStart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req StartBackupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.deps.Tasks.Start(r.Context(), req.Schedule, req.RunImmediately)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, task, start)
}

// BackupStop stops the timer.
func (h *Handler) BackupStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	task, err := h.deps.Tasks.Stop(r.Context())
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, task, start)
}

// BackupSchedule replaces the schedule and runs a pass.
func (h *Handler) BackupSchedule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req ScheduleBackupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.deps.Tasks.Reschedule(r.Context(), req.Schedule)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, task, start)
}

// BackupRun runs one pass now.
func (h *Handler) BackupRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.deps.Tasks.RunNow(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "BACKUP_FAILED", err.Error(), err)
		return
	}
	respondSuccess(w, http.StatusOK, res, start)
}

func respondTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backup.ErrInvalidSchedule):
		respondError(w, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error(), nil)
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "TASK_NOT_FOUND", "Backup task has not been started", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Task operation failed", err)
	}
}
