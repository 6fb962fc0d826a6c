// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.applyDerivedPaths()
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"relative public url", func(c *Config) { c.Server.PublicURL = "/notes" }, "PUBLIC_URL"},
		{"https public url", func(c *Config) { c.Server.PublicURL = "https://notes.example" }, ""},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "DUCKDB_PATH"},
		{"backup dir outside root", func(c *Config) { c.Storage.BackupDir = "/elsewhere" }, "BACKUP_DIR"},
		{"temp dir outside uploads", func(c *Config) {
			c.Storage.TempDir = filepath.Join(c.Storage.RootDir, "scratch")
		}, "TEMP_DIR"},
		{"temp dir under uploads", func(c *Config) {
			c.Storage.TempDir = filepath.Join(c.Storage.UploadsDir, "exports")
		}, ""},
		{"database inside root", func(c *Config) {
			c.Database.Path = filepath.Join(c.Storage.RootDir, "notevault.duckdb")
		}, "DUCKDB_PATH"},
		{"in-memory database", func(c *Config) { c.Database.Path = ":memory:" }, ""},
		{"bad schedule", func(c *Config) { c.Backup.Schedule = "61 * * * *" }, "BACKUP_SCHEDULE"},
		{"bad schedule ignored when disabled", func(c *Config) {
			c.Backup.Enabled = false
			c.Backup.Schedule = "nope"
		}, ""},
		{"archive name with dir", func(c *Config) { c.Backup.ArchiveName = "../x.bko" }, "BACKUP_ARCHIVE_NAME"},
		{"prefix without slash", func(c *Config) { c.Backup.PublicPrefix = "api/file" }, "BACKUP_PUBLIC_PREFIX"},
		{"zero concurrency", func(c *Config) { c.Export.NoteConcurrency = 0 }, "concurrency"},
		{"rate without burst", func(c *Config) { c.Export.RateBurst = 0 }, "EXPORT_RATE_BURST"},
		{"rate limit disabled skips checks", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	t.Parallel()

	if !isWithin("/data/nv", "/data/nv/backup") {
		t.Error("child should be within root")
	}
	if !isWithin("/data/nv", "/data/nv") {
		t.Error("root should be within itself")
	}
	if isWithin("/data/nv", "/data/nv2/backup") {
		t.Error("sibling prefix must not count as within")
	}
	if isWithin("/data/nv", "/data") {
		t.Error("parent must not be within")
	}
}
