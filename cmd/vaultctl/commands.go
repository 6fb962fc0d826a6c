// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/notevault/internal/backup"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/export"
	"github.com/tomtom215/notevault/internal/restore"
)

// --- backup ---

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Run or inspect the scheduled backup task",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one backup pass now and record it in the task row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job := backup.NewJob(backup.ConfigFrom(a.cfg), a.db)
			defer job.Shutdown()

			res, err := job.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d notes and %d files to %s\n",
				res.Notes, res.Files, backup.ConfigFrom(a.cfg).ArchivePath())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the persisted backup task row as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job := backup.NewJob(backup.ConfigFrom(a.cfg), a.db)
			defer job.Shutdown()

			status, err := job.Status(cmd.Context())
			if errors.Is(err, database.ErrNotFound) {
				return errors.New("backup task has not been started")
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	})

	return cmd
}

// --- restore ---

func newRestoreCmd(a *app) *cobra.Command {
	var (
		accountID int64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore notes from a backup archive",
		Long: `Restore notes from a backup archive into the account given by --account.

Every restored note and attachment is reported as it is processed. Failed
items are reported and skipped; the command fails only when the archive
cannot be read.

Examples:
  vaultctl restore /data/files/notevault_export.bko --account 1
  vaultctl restore backup.bko --account 1 --json > events.ndjson`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			pipeline := restore.NewPipeline(restore.ConfigFrom(a.cfg), a.db)
			out := cmd.OutOrStdout()
			var failed, total int

			err = pipeline.Run(cmd.Context(), restore.Request{ArchivePath: archivePath, AccountID: accountID}, func(ev restore.Event) error {
				total++
				if ev.Type == restore.EventError {
					failed++
				}
				if asJSON {
					return json.NewEncoder(out).Encode(ev)
				}
				_, werr := fmt.Fprintln(out, formatEvent(ev))
				return werr
			})
			if err != nil {
				return err
			}
			if failed > 0 && failed == total {
				return fmt.Errorf("restore failed: %d of %d items failed", failed, total)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "account id that will own the restored notes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as newline-delimited JSON")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

// formatEvent renders one restore event as a progress line.
func formatEvent(ev restore.Event) string {
	line := fmt.Sprintf("[%d/%d] %-7s %s", ev.Progress.Current, ev.Progress.Total, ev.Type, ev.Content)
	if ev.Error != "" && ev.Error != ev.Content {
		line += ": " + ev.Error
	}
	return strings.TrimRight(line, " ")
}

// --- export ---

func newExportCmd(a *app) *cobra.Command {
	var (
		accountID int64
		format    string
		from, to  string
		baseURL   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one account's notes to a zip archive",
		Long: `Export one account's notes to a zip archive under the uploads temp directory.

Markdown exports download attachments from --base-url (default: server.public_url,
then the server's listen address).

Examples:
  vaultctl export --account 1 --format csv
  vaultctl export --account 1 --from 2025-01-01 --to 2025-06-30
  vaultctl export --account 1 --base-url https://notes.example.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			start, err := export.ParseDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := export.ParseDate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			exporter := export.NewExporter(
				export.ConfigFrom(a.cfg),
				a.db,
				export.NewHTTPDownloader(export.DownloaderConfigFrom(a.cfg)),
			)
			res, err := exporter.Export(cmd.Context(), export.Request{
				BaseURL:   resolveBaseURL(baseURL, a.cfg.Server.PublicURL, a.cfg.Server.ListenAddr()),
				StartDate: start,
				EndDate:   end,
				AccountID: accountID,
				Format:    f,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n",
				res.FileCount, filepath.Join(a.cfg.Storage.UploadsDir, filepath.FromSlash(res.Path)))
			return nil
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "account whose notes are exported")
	cmd.Flags().StringVar(&format, "format", "markdown", "markdown, csv or json")
	cmd.Flags().StringVar(&from, "from", "", "earliest creation date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "latest creation date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL attachments are downloaded from")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func resolveBaseURL(flag, publicURL, listenAddr string) string {
	switch {
	case flag != "":
		return strings.TrimSuffix(flag, "/")
	case publicURL != "":
		return strings.TrimSuffix(publicURL, "/")
	default:
		return "http://" + listenAddr
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
