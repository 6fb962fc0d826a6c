// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/notevault/internal/archive"
	"github.com/tomtom215/notevault/internal/snapshot"
)

// PassResult is the outcome of one backup pass. Only FilePath is persisted
// in the task row.
type PassResult struct {
	FilePath string `json:"filePath"`
	Notes    int    `json:"-"`
	Files    int    `json:"-"`
	Bytes    int64  `json:"-"`
}

// RunBackupPass writes bak.json, replaces the archive and packs the whole
// root directory into it. It does not take the pass lock; callers outside
// the job should use RunNow.
func (j *Job) RunBackupPass(ctx context.Context) (*PassResult, error) {
	res, err := j.backupPass(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup pass failed: %w", err)
	}
	return res, nil
}

func (j *Job) backupPass(ctx context.Context) (*PassResult, error) {
	notes, err := j.store.SnapshotNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}

	if err := os.MkdirAll(j.cfg.BackupDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	bakPath := filepath.Join(j.cfg.BackupDir, snapshot.FileName)
	if err := snapshot.WriteFile(bakPath, notes, AppVersion, j.now()); err != nil {
		return nil, err
	}

	archivePath := j.cfg.ArchivePath()
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove previous archive: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	stats, err := archive.Pack(ctx, j.cfg.RootDir, archivePath)
	if err != nil {
		return nil, err
	}

	return &PassResult{
		FilePath: j.cfg.PublicPath(),
		Notes:    len(notes),
		Files:    stats.Files,
		Bytes:    stats.Bytes,
	}, nil
}
