// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/notevault/config.yaml",
	"/etc/notevault/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultTaskName is the persisted name of the backup task row.
const DefaultTaskName = "Backup Database"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    1111,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/notevault.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Storage: StorageConfig{
			RootDir: "/data/notevault",
		},
		Backup: BackupConfig{
			Enabled:      true,
			TaskName:     DefaultTaskName,
			Schedule:     "0 0 * * 0", // weekly, Sunday midnight
			AutoStart:    false,
			RunOnStart:   false,
			ArchiveName:  "notevault_export.bko",
			PublicPrefix: "/api/file",
			PassTimeout:  30 * time.Minute,
		},
		Restore: RestoreConfig{
			LegacyProgressTotal: false,
			PerNoteTransaction:  true,
		},
		Export: ExportConfig{
			DownloadTimeout:     30 * time.Second,
			DownloadConcurrency: 4,
			NoteConcurrency:     8,
			RateLimit:           20,
			RateBurst:           10,
			BreakerFailures:     5,
			BreakerTimeout:      30 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with this precedence:
//  1. struct defaults
//  2. optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. environment variables
//
// The result has derived storage paths filled in and has passed Validate.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.applyDerivedPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from env as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"http_host":            "server.host",
	"http_port":            "server.port",
	"server_timeout":       "server.timeout",
	"public_url":           "server.public_url",
	"duckdb_path":          "database.path",
	"duckdb_memory":        "database.max_memory",
	"duckdb_threads":       "database.threads",
	"notevault_root":       "storage.root_dir",
	"uploads_dir":          "storage.uploads_dir",
	"backup_dir":           "storage.backup_dir",
	"temp_dir":             "storage.temp_dir",
	"backup_enabled":       "backup.enabled",
	"backup_task":          "backup.task_name",
	"backup_schedule":      "backup.schedule",
	"backup_autostart":     "backup.autostart",
	"backup_run_on_start":  "backup.run_on_start",
	"backup_archive_name":  "backup.archive_name",
	"backup_public_prefix": "backup.public_prefix",
	"backup_pass_timeout":  "backup.pass_timeout",

	"restore_legacy_progress_total": "restore.legacy_progress_total",
	"restore_per_note_transaction":  "restore.per_note_transaction",

	"export_download_timeout":     "export.download_timeout",
	"export_download_concurrency": "export.download_concurrency",
	"export_note_concurrency":     "export.note_concurrency",
	"export_rate_limit":           "export.rate_limit",
	"export_rate_burst":           "export.rate_burst",
	"export_breaker_failures":     "export.breaker_failures",
	"export_breaker_timeout":      "export.breaker_timeout",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns "" for variables that are not configuration.
//
//   - HTTP_PORT -> server.port
//   - BACKUP_SCHEDULE -> backup.schedule
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
