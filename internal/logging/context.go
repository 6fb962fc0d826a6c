// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
	loggerKey    contextKey = "logger"
)

// NewRequestID returns a full UUID for an inbound HTTP request.
func NewRequestID() string {
	return uuid.New().String()
}

// NewRunID returns a short id for one backup pass, restore or export run.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// ContextWithRequestID stores the request id on ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns "" when no id is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string) //nolint:errcheck // type assertion, zero value is fine
	return id
}

// ContextWithRunID stores a run id that ties together every log line of one
// long-running operation.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns "" when no id is set.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string) //nolint:errcheck // type assertion, zero value is fine
	return id
}

// ContextWithLogger attaches a preconfigured logger to ctx.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Ctx returns the logger stored on ctx (or the global one) with request_id
// and run_id fields added when present.
//
//	logging.Ctx(ctx).Info().Int("notes", n).Msg("Snapshot written")
func Ctx(ctx context.Context) *zerolog.Logger {
	l, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		l = Logger()
	}

	zctx := l.With()
	if id := RequestIDFromContext(ctx); id != "" {
		zctx = zctx.Str("request_id", id)
	}
	if id := RunIDFromContext(ctx); id != "" {
		zctx = zctx.Str("run_id", id)
	}
	out := zctx.Logger()
	return &out
}
