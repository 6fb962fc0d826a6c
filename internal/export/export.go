// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package export bundles a filtered selection of one account's notes into a
// downloadable zip archive, rendered as CSV, JSON or one Markdown file per
// note with its attachments.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/notevault/internal/archive"
	"github.com/tomtom215/notevault/internal/config"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/metrics"
	"github.com/tomtom215/notevault/internal/models"
)

// ErrNoNotesFound is returned when the filter matches nothing.
var ErrNoNotesFound = errors.New("no notes found")

// Format selects the rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat maps a request value to a Format; empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ParseDate parses an optional date bound: an RFC 3339 timestamp or a plain
// YYYY-MM-DD date, which means UTC midnight. Empty returns nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", s)
}

// Store is the query the exporter runs.
type Store interface {
	ExportNotes(ctx context.Context, f database.NoteFilter) ([]models.NoteSummary, error)
}

// Request selects the notes to export. Date bounds are inclusive and
// optional.
type Request struct {
	BaseURL   string
	StartDate *time.Time
	EndDate   *time.Time
	AccountID int64
	Format    Format
}

// Result describes a finished export. Path is relative to the uploads
// directory and starts with a slash.
type Result struct {
	Success   bool   `json:"success"`
	Path      string `json:"path"`
	FileCount int    `json:"fileCount"`
}

// Config holds exporter settings.
type Config struct {
	UploadsDir          string
	TempDir             string
	NoteConcurrency     int
	DownloadConcurrency int
}

// ConfigFrom extracts the export settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		UploadsDir:          cfg.Storage.UploadsDir,
		TempDir:             cfg.Storage.TempDir,
		NoteConcurrency:     cfg.Export.NoteConcurrency,
		DownloadConcurrency: cfg.Export.DownloadConcurrency,
	}
}

// Exporter runs export jobs.
type Exporter struct {
	cfg        Config
	store      Store
	downloader Downloader
	now        func() time.Time
	logger     zerolog.Logger
}

// NewExporter creates an exporter. downloader may be nil when markdown
// exports are not needed.
func NewExporter(cfg Config, store Store, downloader Downloader) *Exporter {
	if cfg.NoteConcurrency <= 0 {
		cfg.NoteConcurrency = 8
	}
	if cfg.DownloadConcurrency <= 0 {
		cfg.DownloadConcurrency = 4
	}
	return &Exporter{
		cfg:        cfg,
		store:      store,
		downloader: downloader,
		now:        time.Now,
		logger:     logging.WithComponent("export"),
	}
}

// Export queries, renders and packs the selected notes. On failure the
// working directory and any partial archive are removed.
func (e *Exporter) Export(ctx context.Context, req Request) (res *Result, err error) {
	if req.Format == "" {
		req.Format = FormatMarkdown
	}
	start := e.now()
	defer func() {
		metrics.RecordExport(string(req.Format), e.now().Sub(start), err)
	}()

	// Refuse before any work when the archive could not be served.
	if _, err := e.publicPath(e.cfg.TempDir); err != nil {
		return nil, err
	}

	notes, err := e.store.ExportNotes(ctx, database.NoteFilter{
		AccountID: req.AccountID,
		Start:     req.StartDate,
		End:       req.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	if len(notes) == 0 {
		return nil, ErrNoNotesFound
	}

	exportDir := filepath.Join(e.cfg.TempDir, "exports-"+uuid.NewString())
	zipPath := filepath.Join(e.cfg.TempDir, "notes_export_"+strconv.FormatInt(start.UnixMilli(), 10)+".zip")

	defer func() {
		os.RemoveAll(exportDir) //nolint:errcheck // Best effort cleanup
		if err != nil {
			os.Remove(zipPath) //nolint:errcheck // Best effort cleanup
		}
	}()

	if err := os.MkdirAll(exportDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	switch req.Format {
	case FormatCSV:
		err = writeCSV(filepath.Join(exportDir, "notes.csv"), notes)
	case FormatJSON:
		err = writeJSON(filepath.Join(exportDir, "notes.json"), notes)
	case FormatMarkdown:
		err = e.writeMarkdown(ctx, exportDir, req.BaseURL, notes)
	default:
		err = fmt.Errorf("unsupported export format %q", req.Format)
	}
	if err != nil {
		return nil, err
	}

	if _, err = archive.Pack(ctx, exportDir, zipPath); err != nil {
		return nil, err
	}

	publicPath, err := e.publicPath(zipPath)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Int64("account_id", req.AccountID).
		Str("format", string(req.Format)).
		Int("notes", len(notes)).
		Str("archive", zipPath).
		Msg("Export completed")

	return &Result{
		Success:   true,
		Path:      publicPath,
		FileCount: len(notes),
	}, nil
}

// publicPath returns p as a slash-separated path under the uploads root.
func (e *Exporter) publicPath(p string) (string, error) {
	rel, err := filepath.Rel(e.cfg.UploadsDir, p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve export path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("export directory %s is outside the uploads root %s", p, e.cfg.UploadsDir)
	}
	return "/" + filepath.ToSlash(rel), nil
}
