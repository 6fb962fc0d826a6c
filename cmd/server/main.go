// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Command server runs the notevault HTTP service: the scheduled backup job,
// the restore and export endpoints and the notification hub, all under one
// supervisor tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/notevault/internal/api"
	"github.com/tomtom215/notevault/internal/backup"
	"github.com/tomtom215/notevault/internal/config"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/export"
	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/restore"
	"github.com/tomtom215/notevault/internal/supervisor"
	"github.com/tomtom215/notevault/internal/supervisor/services"
	ws "github.com/tomtom215/notevault/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("version", backup.AppVersion).
		Str("db_path", cfg.Database.Path).
		Str("root_dir", cfg.Storage.RootDir).
		Str("uploads_dir", cfg.Storage.UploadsDir).
		Msg("Starting notevault")

	if err := ensureDirs(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Failed to prepare storage directories")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	if len(cfg.Security.CORSOrigins) == 1 && cfg.Security.CORSOrigins[0] == "*" {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is disabled")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	hub := ws.NewHub()
	tree.AddMessagingService(services.NewWebSocketHubService(hub))

	job := backup.NewJob(backup.ConfigFrom(cfg), db, backup.WithNotifier(hub))
	// The API can start the timer even when no supervisor service owns the job.
	defer job.Shutdown()
	if cfg.Backup.Enabled {
		tree.AddJobService(services.NewBackupJobService(job, services.BackupJobOptions{
			AutoStart:  cfg.Backup.AutoStart,
			Schedule:   cfg.Backup.Schedule,
			RunOnStart: cfg.Backup.RunOnStart,
		}))
	} else {
		logging.Info().Msg("Scheduled backups disabled; manual runs remain available")
	}

	pipeline := restore.NewPipeline(restore.ConfigFrom(cfg), db)
	exporter := export.NewExporter(
		export.ConfigFrom(cfg),
		db,
		export.NewHTTPDownloader(export.DownloaderConfigFrom(cfg)),
	)

	handler := api.NewHandler(api.HandlerConfigFrom(cfg), api.Dependencies{
		DB:       db,
		Tasks:    job,
		Restorer: pipeline,
		Exporter: exporter,
		Hub:      hub,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg)))

	// No WriteTimeout: restore streams and exports run for as long as the
	// archive takes.
	server := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")
	errCh := tree.ServeBackground(ctx)

	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received, stopping services")

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Notevault stopped")
}

// ensureDirs creates the storage directories the jobs write to.
func ensureDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.Storage.RootDir, cfg.Storage.UploadsDir, cfg.Storage.BackupDir, cfg.Storage.TempDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return nil
}
