// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/notevault/internal/models"
)

// CreateTag inserts a tag.
func (db *DB) CreateTag(ctx context.Context, t models.Tag) (*models.Tag, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO tags (name, icon, parent) VALUES (?, ?, ?) RETURNING id`,
		t.Name, t.Icon, t.Parent).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag %q: %w", t.Name, err)
	}
	return &t, nil
}

// TagNote links a tag to a note.
func (db *DB) TagNote(ctx context.Context, noteID, tagID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO tags_to_note (note_id, tag_id) VALUES (?, ?)`, noteID, tagID); err != nil {
		return fmt.Errorf("failed to tag note %d: %w", noteID, err)
	}
	return nil
}

// LinkNotes records a reference from one note to another.
func (db *DB) LinkNotes(ctx context.Context, fromNoteID, toNoteID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO note_references (from_note_id, to_note_id) VALUES (?, ?)`, fromNoteID, toNoteID); err != nil {
		return fmt.Errorf("failed to link note %d to %d: %w", fromNoteID, toNoteID, err)
	}
	return nil
}
