// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/notevault/internal/models"
)

const attachmentColumns = `a.id, a.name, a.path, a.size, a.type, a.is_share, a.share_password, a.note_id, a.created_at, a.updated_at`

// FindAttachmentByName returns the oldest attachment with that name, or
// ErrNotFound.
func (db *DB) FindAttachmentByName(ctx context.Context, name string) (*models.Attachment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments a WHERE a.name = ? ORDER BY a.id LIMIT 1`, name)
	a, err := scanAttachment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find attachment %q: %w", name, notFound(err))
	}
	return a, nil
}

// CreateAttachment inserts a new attachment row and returns it with its id.
func (db *DB) CreateAttachment(ctx context.Context, a models.Attachment) (*models.Attachment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()

	var noteID sql.NullInt64
	if a.NoteID != nil {
		noteID = sql.NullInt64{Int64: *a.NoteID, Valid: true}
	}

	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO attachments (name, path, size, type, is_share, share_password, note_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.Name, a.Path, int64(a.Size), a.Type, a.IsShare, a.SharePassword, noteID, a.CreatedAt, a.UpdatedAt).
		Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment %q: %w", a.Name, err)
	}
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (*models.Attachment, error) {
	var (
		a      models.Attachment
		size   int64
		noteID sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Path, &size, &a.Type, &a.IsShare, &a.SharePassword,
		&noteID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Size = models.FileSize(size)
	if noteID.Valid {
		id := noteID.Int64
		a.NoteID = &id
	}
	return &a, nil
}

// attachmentsByNote runs query (which must select attachmentColumns) and
// groups the rows by note id, preserving row order.
func attachmentsByNote(ctx context.Context, q querier, query string, args ...any) (map[int64][]models.Attachment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer closeQuietly(rows)

	out := make(map[int64][]models.Attachment)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		if a.NoteID == nil {
			continue
		}
		out[*a.NoteID] = append(out[*a.NoteID], *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}
	return out, nil
}
