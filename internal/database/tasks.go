// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tomtom215/notevault/internal/models"
)

// GetTask returns the task row by name, or ErrNotFound.
func (db *DB) GetTask(ctx context.Context, name string) (*models.ScheduledTask, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return getTask(ctx, db.conn, name)
}

// CreateTask inserts a task row. Names are unique.
func (db *DB) CreateTask(ctx context.Context, t models.ScheduledTask) (*models.ScheduledTask, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var lastRun sql.NullTime
	if t.LastRun != nil {
		lastRun = sql.NullTime{Time: t.LastRun.UTC(), Valid: true}
	}

	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (name, schedule, is_running, is_success, last_run, output)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, t.Schedule, t.IsRunning, t.IsSuccess, lastRun, nullableJSON(t.Output)); err != nil {
		return nil, fmt.Errorf("failed to create task %q: %w", t.Name, err)
	}
	return getTask(ctx, db.conn, t.Name)
}

// UpdateTask applies the non-nil fields of u to the named row and returns the
// updated row. ErrNotFound when the row does not exist.
func (db *DB) UpdateTask(ctx context.Context, name string, u models.TaskUpdate) (*models.ScheduledTask, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		sets []string
		args []any
	)
	if u.Schedule != nil {
		sets = append(sets, "schedule = ?")
		args = append(args, *u.Schedule)
	}
	if u.IsRunning != nil {
		sets = append(sets, "is_running = ?")
		args = append(args, *u.IsRunning)
	}
	if u.IsSuccess != nil {
		sets = append(sets, "is_success = ?")
		args = append(args, *u.IsSuccess)
	}
	if u.LastRun != nil {
		sets = append(sets, "last_run = ?")
		args = append(args, u.LastRun.UTC())
	}
	if u.Output != nil {
		sets = append(sets, "output = ?")
		args = append(args, string(u.Output))
	}
	if len(sets) == 0 {
		return getTask(ctx, db.conn, name)
	}

	args = append(args, name)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE scheduled_tasks SET `+strings.Join(sets, ", ")+` WHERE name = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("failed to update task %q: %w", name, ErrNotFound)
	}
	return getTask(ctx, db.conn, name)
}

func getTask(ctx context.Context, q querier, name string) (*models.ScheduledTask, error) {
	var (
		t       models.ScheduledTask
		lastRun sql.NullTime
		output  sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT name, schedule, is_running, is_success, last_run, output
		FROM scheduled_tasks WHERE name = ?`, name).
		Scan(&t.Name, &t.Schedule, &t.IsRunning, &t.IsSuccess, &lastRun, &output)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %q: %w", name, notFound(err))
	}
	if lastRun.Valid {
		ts := lastRun.Time.UTC()
		t.LastRun = &ts
	}
	if output.Valid && output.String != "" {
		t.Output = []byte(output.String)
	}
	return &t, nil
}

func nullableJSON(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
