// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/notevault/internal/backup"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/models"
)

// BackupJob is the part of *backup.Job the service drives.
type BackupJob interface {
	Status(ctx context.Context) (*models.TaskStatus, error)
	Resume(task *models.ScheduledTask) error
	Start(ctx context.Context, schedule string, runImmediately bool) (*models.ScheduledTask, error)
	Shutdown()
}

// BackupJobOptions controls what happens at init when no task row exists.
type BackupJobOptions struct {
	AutoStart  bool
	Schedule   string
	RunOnStart bool
}

// BackupJobService owns the backup job's lifetime inside the tree.
//
// Init: a persisted row with isRunning resumes its schedule without a pass;
// a missing row starts the configured schedule when AutoStart is set; a
// stopped row is left stopped.
//
// Teardown: Job.Shutdown stops the timer and waits for an in-flight pass.
// The job cannot be started again afterwards, so teardown only happens when
// the tree itself stops.
type BackupJobService struct {
	job  BackupJob
	opts BackupJobOptions
	name string
}

// NewBackupJobService creates the service.
func NewBackupJobService(job BackupJob, opts BackupJobOptions) *BackupJobService {
	return &BackupJobService{job: job, opts: opts, name: "backup-job"}
}

// Serve implements suture.Service.
func (s *BackupJobService) Serve(ctx context.Context) error {
	if err := s.init(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	s.job.Shutdown()
	return ctx.Err()
}

func (s *BackupJobService) init(ctx context.Context) error {
	log := logging.WithComponent(s.name)

	status, err := s.job.Status(ctx)
	switch {
	case err == nil && status.IsRunning:
		if err := s.job.Resume(&status.ScheduledTask); err != nil {
			if errors.Is(err, backup.ErrInvalidSchedule) {
				// Restarting cannot fix a bad stored schedule; wait for the
				// API to set a new one.
				log.Error().Err(err).Str("schedule", status.Schedule).Msg("Persisted backup schedule is invalid")
				return nil
			}
			return fmt.Errorf("failed to resume backup job: %w", err)
		}
	case err == nil:
		log.Info().Msg("Backup task is stopped")
	case errors.Is(err, database.ErrNotFound):
		if !s.opts.AutoStart {
			log.Info().Msg("Backup task not configured")
			return nil
		}
		if _, err := s.job.Start(ctx, s.opts.Schedule, s.opts.RunOnStart); err != nil {
			return fmt.Errorf("failed to autostart backup job: %w", err)
		}
	default:
		return fmt.Errorf("failed to load backup task: %w", err)
	}
	return nil
}

// String implements fmt.Stringer for suture's logs.
func (s *BackupJobService) String() string {
	return s.name
}
