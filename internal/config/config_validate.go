// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/tomtom215/notevault/internal/cron"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	if c.Server.PublicURL != "" {
		u, err := url.Parse(c.Server.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", c.Server.PublicURL)
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS cannot be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	if s.RootDir == "" {
		return fmt.Errorf("NOTEVAULT_ROOT is required")
	}
	// Backups pack the root and restore unpacks into it, so bak.json only
	// round-trips when it lives under the root.
	if s.BackupDir != "" && !isWithin(s.RootDir, s.BackupDir) {
		return fmt.Errorf("BACKUP_DIR must be inside NOTEVAULT_ROOT (%s), got %s", s.RootDir, s.BackupDir)
	}
	// Export archives are published through the uploads file route.
	if s.TempDir != "" && s.UploadsDir != "" && !isWithin(s.UploadsDir, s.TempDir) {
		return fmt.Errorf("TEMP_DIR must be inside UPLOADS_DIR (%s), got %s", s.UploadsDir, s.TempDir)
	}
	// The live database would be packed into backups and overwritten by restores.
	if p := c.Database.Path; p != "" && p != ":memory:" && isWithin(s.RootDir, p) {
		return fmt.Errorf("DUCKDB_PATH must be outside NOTEVAULT_ROOT (%s), got %s", s.RootDir, p)
	}
	return nil
}

func (c *Config) validateBackup() error {
	b := c.Backup
	if !b.Enabled {
		return nil
	}
	if strings.TrimSpace(b.TaskName) == "" {
		return fmt.Errorf("BACKUP_TASK cannot be empty")
	}
	if err := cron.Validate(b.Schedule); err != nil {
		return fmt.Errorf("BACKUP_SCHEDULE is invalid: %w", err)
	}
	if b.ArchiveName == "" || b.ArchiveName != filepath.Base(b.ArchiveName) {
		return fmt.Errorf("BACKUP_ARCHIVE_NAME must be a plain file name, got %q", b.ArchiveName)
	}
	if !strings.HasPrefix(b.PublicPrefix, "/") {
		return fmt.Errorf("BACKUP_PUBLIC_PREFIX must start with /, got %q", b.PublicPrefix)
	}
	if b.PassTimeout <= 0 {
		return fmt.Errorf("BACKUP_PASS_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateExport() error {
	e := c.Export
	if e.DownloadTimeout <= 0 {
		return fmt.Errorf("EXPORT_DOWNLOAD_TIMEOUT must be positive")
	}
	if e.DownloadConcurrency < 1 || e.NoteConcurrency < 1 {
		return fmt.Errorf("export concurrency limits must be at least 1")
	}
	if e.RateLimit < 0 {
		return fmt.Errorf("EXPORT_RATE_LIMIT cannot be negative")
	}
	if e.RateLimit > 0 && e.RateBurst < 1 {
		return fmt.Errorf("EXPORT_RATE_BURST must be at least 1 when EXPORT_RATE_LIMIT is set")
	}
	if e.BreakerFailures == 0 {
		return fmt.Errorf("EXPORT_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
