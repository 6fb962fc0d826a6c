// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package api serves the HTTP interface: task control, restore streaming,
// exports, file downloads and the notification websocket.
package api

import (
	"context"
	"time"

	"github.com/tomtom215/notevault/internal/backup"
	"github.com/tomtom215/notevault/internal/config"
	"github.com/tomtom215/notevault/internal/export"
	"github.com/tomtom215/notevault/internal/models"
	"github.com/tomtom215/notevault/internal/restore"
	ws "github.com/tomtom215/notevault/internal/websocket"
)

// Pinger reports datastore liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackupTasks controls the scheduled backup task.
type BackupTasks interface {
	Start(ctx context.Context, schedule string, runImmediately bool) (*models.ScheduledTask, error)
	Stop(ctx context.Context) (*models.ScheduledTask, error)
	Reschedule(ctx context.Context, schedule string) (*models.ScheduledTask, error)
	RunNow(ctx context.Context) (*backup.PassResult, error)
	Status(ctx context.Context) (*models.TaskStatus, error)
}

// Restorer runs a restore and delivers its events to sink.
type Restorer interface {
	Run(ctx context.Context, req restore.Request, sink restore.Sink) error
}

// Exporter runs an export job.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Dependencies are the services the handlers call. Hub may be nil, in which
// case the websocket routes are not registered.
type Dependencies struct {
	DB       Pinger
	Tasks    BackupTasks
	Restorer Restorer
	Exporter Exporter
	Hub      *ws.Hub
}

// HandlerConfig holds the settings the handlers need.
type HandlerConfig struct {
	// UploadsDir is served under FilePrefix and anchors restore file paths.
	UploadsDir string
	FilePrefix string
	// PublicURL overrides the request-derived base URL for exports.
	PublicURL   string
	CORSOrigins []string
	Version     string
}

// HandlerConfigFrom extracts the handler settings from the application
// config.
func HandlerConfigFrom(cfg *config.Config) HandlerConfig {
	prefix := cfg.Backup.PublicPrefix
	if prefix == "" {
		prefix = "/api/file"
	}
	return HandlerConfig{
		UploadsDir:  cfg.Storage.UploadsDir,
		FilePrefix:  prefix,
		PublicURL:   cfg.Server.PublicURL,
		CORSOrigins: cfg.Security.CORSOrigins,
		Version:     backup.AppVersion,
	}
}

// Handler implements the HTTP endpoints.
type Handler struct {
	cfg       HandlerConfig
	deps      Dependencies
	startTime time.Time
}

// NewHandler creates a handler.
func NewHandler(cfg HandlerConfig, deps Dependencies) *Handler {
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "/api/file"
	}
	return &Handler{
		cfg:       cfg,
		deps:      deps,
		startTime: time.Now(),
	}
}
