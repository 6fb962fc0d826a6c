// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package metrics registers the Prometheus collectors for backup passes,
// restore runs, exports, attachment downloads and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backup job
	BackupPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notevault_backup_passes_total",
			Help: "Backup passes by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: tick|start|manual, outcome: success|error
	)

	BackupPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notevault_backup_pass_duration_seconds",
			Help:    "Duration of a backup pass",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	BackupNotesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notevault_backup_last_notes",
			Help: "Notes written by the last successful backup pass",
		},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notevault_backup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful backup pass",
		},
	)

	BackupScheduleActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notevault_backup_schedule_active",
			Help: "1 while the backup schedule is running",
		},
	)

	// Restore pipeline
	RestoreEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notevault_restore_events_total",
			Help: "Restore progress events by type",
		},
		[]string{"type"},
	)

	RestoreRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notevault_restore_runs_total",
			Help: "Restore runs by outcome",
		},
		[]string{"outcome"}, // completed|aborted|failed
	)

	// Export job
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notevault_exports_total",
			Help: "Export runs by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notevault_export_duration_seconds",
			Help:    "Duration of export runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	AttachmentDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notevault_attachment_downloads_total",
			Help: "Attachment downloads performed by markdown export",
		},
		[]string{"outcome"}, // success|error|circuit_open
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notevault_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notevault_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notevault_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notevault_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)
)

// RecordBackupPass records one backup pass.
func RecordBackupPass(trigger string, duration time.Duration, notes int, err error) {
	BackupPassDuration.Observe(duration.Seconds())
	if err != nil {
		BackupPassesTotal.WithLabelValues(trigger, "error").Inc()
		return
	}
	BackupPassesTotal.WithLabelValues(trigger, "success").Inc()
	BackupNotesTotal.Set(float64(notes))
	BackupLastSuccess.Set(float64(time.Now().Unix()))
}

// SetBackupScheduleActive flips the schedule gauge.
func SetBackupScheduleActive(active bool) {
	if active {
		BackupScheduleActive.Set(1)
		return
	}
	BackupScheduleActive.Set(0)
}

// RecordRestoreEvent counts one progress event.
func RecordRestoreEvent(eventType string) {
	RestoreEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordRestoreRun counts a finished restore run.
func RecordRestoreRun(outcome string) {
	RestoreRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordExport records one export run.
func RecordExport(format string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ExportsTotal.WithLabelValues(format, outcome).Inc()
	ExportDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordDownload counts one attachment download attempt.
func RecordDownload(outcome string) {
	AttachmentDownloadsTotal.WithLabelValues(outcome).Inc()
}

// SetCircuitBreakerState publishes a breaker state as 0, 1 or 2.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
