// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Command vaultctl runs backups, restores and exports without the HTTP
// server. It opens the same DuckDB file as the server, so the server must
// be stopped while vaultctl runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/notevault/internal/config"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/logging"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	verbose    bool

	cfg *config.Config
	db  *database.DB
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer func() {
		if err := a.close(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operate notevault backups, restores and exports from the shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config.yaml (default: CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newBackupCmd(a), newRestoreCmd(a), newExportCmd(a))
	return root
}

func (a *app) open() error {
	if a.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, a.configPath); err != nil {
			return fmt.Errorf("failed to set config path: %w", err)
		}
	}
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if a.verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console", Timestamp: true, Output: os.Stderr})

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	a.cfg, a.db = cfg, db
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	db := a.db
	a.db = nil
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
