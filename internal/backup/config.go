// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package backup

import (
	"path"
	"path/filepath"
	"time"

	"github.com/tomtom215/notevault/internal/config"
)

// Config is the subset of application settings the backup job needs.
type Config struct {
	TaskName string

	// RootDir is packed whole into the archive.
	RootDir    string
	BackupDir  string
	UploadsDir string

	ArchiveName  string
	PublicPrefix string
	PassTimeout  time.Duration
}

// ConfigFrom extracts the backup settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		TaskName:     cfg.Backup.TaskName,
		RootDir:      cfg.Storage.RootDir,
		BackupDir:    cfg.Storage.BackupDir,
		UploadsDir:   cfg.Storage.UploadsDir,
		ArchiveName:  cfg.Backup.ArchiveName,
		PublicPrefix: cfg.Backup.PublicPrefix,
		PassTimeout:  cfg.Backup.PassTimeout,
	}
}

// ArchivePath is the filesystem location of the backup archive.
func (c Config) ArchivePath() string {
	return filepath.Join(c.UploadsDir, c.ArchiveName)
}

// PublicPath is the URL path clients use to download the archive.
func (c Config) PublicPath() string {
	return path.Join(c.PublicPrefix, c.ArchiveName)
}

func (c *Config) applyDefaults() {
	if c.TaskName == "" {
		c.TaskName = config.DefaultTaskName
	}
	if c.ArchiveName == "" {
		c.ArchiveName = "notevault_export.bko"
	}
	if c.PublicPrefix == "" {
		c.PublicPrefix = "/api/file"
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = 30 * time.Minute
	}
}
