// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ScheduledTask is the persisted state of a named recurring job. Name is the
// unique key; all updates go through it.
type ScheduledTask struct {
	Name      string          `json:"name"`
	Schedule  string          `json:"schedule"`
	IsRunning bool            `json:"isRunning"`
	IsSuccess bool            `json:"isSuccess"`
	LastRun   *time.Time      `json:"lastRun,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// TaskUpdate lists the columns to change on a task row. Nil fields are left
// untouched.
type TaskUpdate struct {
	Schedule  *string
	IsRunning *bool
	IsSuccess *bool
	LastRun   *time.Time
	Output    json.RawMessage
}

// TaskStatus is a task row joined with the in-memory scheduler state.
type TaskStatus struct {
	ScheduledTask
	Active  bool       `json:"active"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

// ErrorOutput is stored in ScheduledTask.Output when a run fails.
type ErrorOutput struct {
	Error string `json:"error"`
}
