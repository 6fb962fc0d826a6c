// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

/*
config.go - Configuration Types

Every setting Notevault reads at startup. Values are layered by LoadWithKoanf:
struct defaults, then an optional YAML file, then environment variables.

Storage layout (all derived from storage.root_dir unless set explicitly):

	<root_dir>/              packed whole by the backup job
	<root_dir>/files/        uploads_dir, served under /api/file/
	<root_dir>/backup/       backup_dir, holds bak.json
	<root_dir>/files/temp/   temp_dir, export scratch space and archives
*/
//nolint:staticcheck // File documentation, not package doc
package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Backup   BackupConfig   `koanf:"backup"`
	Restore  RestoreConfig  `koanf:"restore"`
	Export   ExportConfig   `koanf:"export"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// PublicURL is the externally reachable base URL. Export downloads
	// attachments from PublicURL + attachment path; when empty the base URL
	// is derived from the incoming request.
	PublicURL string `koanf:"public_url"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// StorageConfig holds filesystem locations.
type StorageConfig struct {
	RootDir    string `koanf:"root_dir"`
	UploadsDir string `koanf:"uploads_dir"`
	BackupDir  string `koanf:"backup_dir"`
	TempDir    string `koanf:"temp_dir"`
}

// BackupConfig controls the scheduled backup task.
type BackupConfig struct {
	Enabled  bool   `koanf:"enabled"`
	TaskName string `koanf:"task_name"`
	Schedule string `koanf:"schedule"`

	// AutoStart starts the schedule at boot when no task row exists yet.
	AutoStart bool `koanf:"autostart"`
	// RunOnStart runs a pass immediately when AutoStart fires.
	RunOnStart bool `koanf:"run_on_start"`

	ArchiveName  string        `koanf:"archive_name"`
	PublicPrefix string        `koanf:"public_prefix"`
	PassTimeout  time.Duration `koanf:"pass_timeout"`
}

// RestoreConfig controls the restore pipeline.
type RestoreConfig struct {
	// LegacyProgressTotal reports total as notes+attachments-1, matching
	// older clients. current may then exceed total on the final event.
	LegacyProgressTotal bool `koanf:"legacy_progress_total"`

	// PerNoteTransaction wraps note creation, account reconciliation and the
	// ownership update of each note in one transaction.
	PerNoteTransaction bool `koanf:"per_note_transaction"`
}

// ExportConfig controls the export job and its attachment downloader.
type ExportConfig struct {
	DownloadTimeout     time.Duration `koanf:"download_timeout"`
	DownloadConcurrency int           `koanf:"download_concurrency"`
	NoteConcurrency     int           `koanf:"note_concurrency"`
	RateLimit           float64       `koanf:"rate_limit"` // downloads per second, 0 = unlimited
	RateBurst           int           `koanf:"rate_burst"`
	BreakerFailures     uint32        `koanf:"breaker_failures"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds HTTP hardening settings. Authentication is handled
// upstream of this service.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// applyDerivedPaths fills storage paths that were left empty.
func (c *Config) applyDerivedPaths() {
	s := &c.Storage
	if s.UploadsDir == "" {
		s.UploadsDir = filepath.Join(s.RootDir, "files")
	}
	if s.BackupDir == "" {
		s.BackupDir = filepath.Join(s.RootDir, "backup")
	}
	if s.TempDir == "" {
		s.TempDir = filepath.Join(s.UploadsDir, "temp")
	}
}

// ArchivePath is where the backup job writes its archive.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Storage.UploadsDir, c.Backup.ArchiveName)
}

// ListenAddr returns host:port for the HTTP server.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
