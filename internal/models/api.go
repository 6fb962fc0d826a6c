// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package models

import "time"

// APIResponse wraps every JSON body the HTTP API returns.
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"2026-01-18T00:00:00Z"}}
//	{"status":"error","error":{"code":"NO_NOTES","message":"no notes found"},"metadata":{...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// APIError is a machine-readable code plus a human message.
//
// Codes: VALIDATION_ERROR, INVALID_SCHEDULE, TASK_NOT_FOUND, NO_NOTES,
// INVALID_PATH, BACKUP_FAILED, RATE_LIMITED, NOT_FOUND, METHOD_NOT_ALLOWED,
// INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
