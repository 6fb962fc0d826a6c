// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

/*
job.go - Scheduled Backup Job

The Job owns one named recurring timer and the persisted task row that
mirrors it. The timer is either stopped or running; Start, Stop and
Reschedule move it between those states and write the outcome to the row.

Locking:
  - controlMu serializes Start, Stop, Resume and Shutdown, so stopping the
    old loop and starting the new one is a single step.
  - stateMu guards the schedule, the running flag and the loop goroutine.
  - passMu serializes backup passes, so ticks, immediate passes and manual
    passes never overlap.

A Job is constructed explicitly and owned by whoever runs it (the supervisor
service in the server, the command itself in vaultctl). Shutdown is the
teardown hook: it stops the loop and waits for an in-flight pass but leaves
the persisted isRunning flag alone, so the schedule resumes on next boot.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/notevault/internal/cron"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/metrics"
	"github.com/tomtom215/notevault/internal/models"
)

// AppVersion is set at build time and recorded in every snapshot.
var AppVersion = "dev"

// ErrInvalidSchedule wraps cron parse failures from Start and Reschedule.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Store is the datastore surface the job uses.
type Store interface {
	SnapshotNotes(ctx context.Context) ([]models.Note, error)
	GetTask(ctx context.Context, name string) (*models.ScheduledTask, error)
	CreateTask(ctx context.Context, t models.ScheduledTask) (*models.ScheduledTask, error)
	UpdateTask(ctx context.Context, name string, u models.TaskUpdate) (*models.ScheduledTask, error)
}

// Notifier receives the task status after every state change and pass.
type Notifier interface {
	BackupTaskChanged(status models.TaskStatus)
}

// Option configures a Job.
type Option func(*Job)

// WithNotifier registers a status listener.
func WithNotifier(n Notifier) Option {
	return func(j *Job) { j.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// Job is the scheduled backup task.
type Job struct {
	cfg      Config
	store    Store
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger

	// base is canceled by Shutdown; scheduled passes derive from it.
	base   context.Context
	cancel context.CancelFunc

	stateMu  sync.Mutex
	expr     string
	schedule *cron.Schedule
	running  bool
	nextRun  time.Time
	stopCh   chan struct{}
	loopWg   sync.WaitGroup
	shutdown bool

	// controlMu is never taken by the loop goroutine.
	controlMu sync.Mutex
	passMu    sync.Mutex
}

// NewJob creates a stopped job.
func NewJob(cfg Config, store Store, opts ...Option) *Job {
	cfg.applyDefaults()
	base, cancel := context.WithCancel(context.Background())
	j := &Job{
		cfg:    cfg,
		store:  store,
		now:    time.Now,
		logger: logging.WithComponent("backup"),
		base:   base,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Config returns the job settings.
func (j *Job) Config() Config {
	return j.cfg
}

// Start sets the schedule, starts (or restarts) the timer and, when
// runImmediately is set, runs one pass before persisting the row. A failed
// immediate pass is recorded in the row and not returned.
func (j *Job) Start(ctx context.Context, schedule string, runImmediately bool) (*models.ScheduledTask, error) {
	sched, err := cron.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	j.controlMu.Lock()
	defer j.controlMu.Unlock()

	existing, err := j.store.GetTask(ctx, j.cfg.TaskName)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up task %q: %w", j.cfg.TaskName, err)
	}

	if err := j.startLoop(schedule, sched); err != nil {
		return nil, err
	}

	var (
		success bool
		output  json.RawMessage
	)
	if runImmediately {
		res, passErr := j.runPass(ctx, "start")
		success = passErr == nil
		output = passOutput(res, passErr)
	}

	now := j.now()
	running := j.IsActive()

	var task *models.ScheduledTask
	if existing == nil {
		task, err = j.store.CreateTask(ctx, models.ScheduledTask{
			Name:      j.cfg.TaskName,
			Schedule:  schedule,
			IsRunning: running,
			IsSuccess: success,
			LastRun:   &now,
			Output:    output,
		})
	} else {
		task, err = j.store.UpdateTask(ctx, j.cfg.TaskName, models.TaskUpdate{
			Schedule:  &schedule,
			IsRunning: &running,
			IsSuccess: &success,
			LastRun:   &now,
			Output:    output,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist task %q: %w", j.cfg.TaskName, err)
	}

	j.logger.Info().
		Str("schedule", schedule).
		Bool("run_immediately", runImmediately).
		Bool("success", success).
		Msg("Backup schedule started")
	j.notify(task)
	return task, nil
}

// Stop stops the timer and persists isRunning=false. The row must exist.
func (j *Job) Stop(ctx context.Context) (*models.ScheduledTask, error) {
	j.controlMu.Lock()
	defer j.controlMu.Unlock()

	j.stopLoop()

	running := false
	task, err := j.store.UpdateTask(ctx, j.cfg.TaskName, models.TaskUpdate{IsRunning: &running})
	if err != nil {
		return nil, fmt.Errorf("failed to stop task %q: %w", j.cfg.TaskName, err)
	}

	j.logger.Info().Msg("Backup schedule stopped")
	j.notify(task)
	return task, nil
}

// Reschedule replaces the schedule and performs Start(schedule, true).
func (j *Job) Reschedule(ctx context.Context, schedule string) (*models.ScheduledTask, error) {
	return j.Start(ctx, schedule, true)
}

// Resume restarts the timer from a persisted row without running a pass or
// touching the row. Used at boot when the row says isRunning.
func (j *Job) Resume(task *models.ScheduledTask) error {
	sched, err := cron.Parse(task.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	j.controlMu.Lock()
	defer j.controlMu.Unlock()
	if err := j.startLoop(task.Schedule, sched); err != nil {
		return err
	}
	j.logger.Info().Str("schedule", task.Schedule).Msg("Backup schedule resumed")
	return nil
}

// RunNow runs one pass and records its outcome in the row, like a tick.
func (j *Job) RunNow(ctx context.Context) (*PassResult, error) {
	res, err := j.runPass(ctx, "manual")
	j.recordOutcome(ctx, res, err)
	return res, err
}

// Status returns the persisted row joined with the timer state.
func (j *Job) Status(ctx context.Context) (*models.TaskStatus, error) {
	task, err := j.store.GetTask(ctx, j.cfg.TaskName)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %q: %w", j.cfg.TaskName, err)
	}
	status := j.statusOf(task)
	return &status, nil
}

// Schedule returns the cron expression of the current or last timer.
func (j *Job) Schedule() string {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	return j.expr
}

// IsActive reports whether the timer is running.
func (j *Job) IsActive() bool {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	return j.running
}

// NextRun returns the next fire time, or zero when stopped.
func (j *Job) NextRun() time.Time {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	if !j.running {
		return time.Time{}
	}
	return j.nextRun
}

// Shutdown stops the timer and waits for an in-flight pass. The job cannot
// be started again afterwards.
func (j *Job) Shutdown() {
	j.controlMu.Lock()
	defer j.controlMu.Unlock()

	j.stopLoop()

	j.stateMu.Lock()
	j.shutdown = true
	j.stateMu.Unlock()

	// Waits for a pass started outside the loop.
	j.passMu.Lock()
	j.cancel()
	j.passMu.Unlock()
}

func (j *Job) statusOf(task *models.ScheduledTask) models.TaskStatus {
	status := models.TaskStatus{ScheduledTask: *task}
	j.stateMu.Lock()
	status.Active = j.running
	if j.running && !j.nextRun.IsZero() {
		next := j.nextRun
		status.NextRun = &next
	}
	j.stateMu.Unlock()
	return status
}

func (j *Job) notify(task *models.ScheduledTask) {
	if j.notifier == nil || task == nil {
		return
	}
	j.notifier.BackupTaskChanged(j.statusOf(task))
}

// recordOutcome writes a pass result to the row. Failures are logged.
func (j *Job) recordOutcome(ctx context.Context, res *PassResult, passErr error) {
	success := passErr == nil
	u := models.TaskUpdate{
		IsSuccess: &success,
		Output:    passOutput(res, passErr),
	}
	if success {
		now := j.now()
		u.LastRun = &now
	}

	task, err := j.store.UpdateTask(ctx, j.cfg.TaskName, u)
	if err != nil {
		j.logger.Error().Err(err).Msg("Failed to record backup outcome")
		return
	}
	j.notify(task)
}

func passOutput(res *PassResult, passErr error) json.RawMessage {
	var (
		data []byte
		err  error
	)
	if passErr != nil {
		data, err = json.Marshal(models.ErrorOutput{Error: passErr.Error()})
	} else {
		data, err = json.Marshal(res)
	}
	if err != nil {
		return nil
	}
	return data
}

// runPass serializes passes and records metrics.
func (j *Job) runPass(ctx context.Context, trigger string) (*PassResult, error) {
	j.passMu.Lock()
	defer j.passMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.cfg.PassTimeout)
	defer cancel()

	ctx = logging.ContextWithRunID(ctx, logging.NewRunID())
	start := j.now()
	res, err := j.RunBackupPass(ctx)
	elapsed := j.now().Sub(start)

	notes := 0
	if res != nil {
		notes = res.Notes
	}
	metrics.RecordBackupPass(trigger, elapsed, notes, err)

	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("trigger", trigger).Msg("Backup pass failed")
	} else {
		logging.Ctx(ctx).Info().
			Str("trigger", trigger).
			Int("notes", res.Notes).
			Int("files", res.Files).
			Dur("duration", elapsed).
			Msg("Backup pass completed")
	}
	return res, err
}
