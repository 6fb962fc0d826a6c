// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

/*
notes.go - Note Queries

Writes used by restore (CreateNote, UpdateNoteOwnership), the full-corpus
read used by backup (SnapshotNotes) and the filtered read used by export
(ExportNotes).

SnapshotNotes issues one query per relation and stitches the results in Go
so each note carries its account, attachments, tags, outgoing references and
incoming references. All slices are non-nil so they serialize as [].
*/
//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/notevault/internal/database/query"
	"github.com/tomtom215/notevault/internal/models"
)

// NoteFilter narrows ExportNotes. Nil bounds are open.
type NoteFilter struct {
	AccountID int64
	Start     *time.Time
	End       *time.Time
}

// CreateNote inserts a note owned by n.AccountID with created/updated set to now.
func (db *DB) CreateNote(ctx context.Context, n models.NewNote) (*models.Note, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return createNote(ctx, db.conn, n)
}

// UpdateNoteOwnership reassigns a note and rewrites its timestamps. A zero
// timestamp leaves that column unchanged.
func (db *DB) UpdateNoteOwnership(ctx context.Context, noteID, accountID int64, createdAt, updatedAt time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return updateNoteOwnership(ctx, db.conn, noteID, accountID, createdAt, updatedAt)
}

func createNote(ctx context.Context, q querier, n models.NewNote) (*models.Note, error) {
	now := time.Now().UTC()
	note := &models.Note{
		Type:         n.Type,
		Content:      n.Content,
		IsArchived:   n.IsArchived,
		IsShare:      n.IsShare,
		IsTop:        n.IsTop,
		AccountID:    &n.AccountID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Attachments:  []models.Attachment{},
		Tags:         []models.TagOnNote{},
		References:   []models.NoteReference{},
		ReferencedBy: []models.NoteReference{},
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO notes (type, content, is_archived, is_share, is_top, account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		n.Type, n.Content, n.IsArchived, n.IsShare, n.IsTop, n.AccountID, now, now).Scan(&note.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

func updateNoteOwnership(ctx context.Context, q querier, noteID, accountID int64, createdAt, updatedAt time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE notes SET
			account_id = ?,
			created_at = COALESCE(CAST(? AS TIMESTAMP), created_at),
			updated_at = COALESCE(CAST(? AS TIMESTAMP), updated_at)
		WHERE id = ?`,
		accountID, optionalTime(createdAt), optionalTime(updatedAt), noteID)
	if err != nil {
		return fmt.Errorf("failed to update note %d: %w", noteID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update note %d: %w", noteID, ErrNotFound)
	}
	return nil
}

// optionalTime maps the zero time to NULL.
func optionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// SnapshotNotes returns every note with its relations, ordered by id.
func (db *DB) SnapshotNotes(ctx context.Context) ([]models.Note, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id, n.type, n.content, n.is_archived, n.is_share, n.is_top, n.account_id,
		       n.created_at, n.updated_at,
		       a.id, a.name, a.nickname, a.password, a.role, a.created_at, a.updated_at
		FROM notes n
		LEFT JOIN accounts a ON a.id = n.account_id
		ORDER BY n.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer closeQuietly(rows)

	notes := []models.Note{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			n        models.Note
			noteAcct sql.NullInt64
			acctID   sql.NullInt64
			acct     models.Account
			name     sql.NullString
			nickname sql.NullString
			password sql.NullString
			role     sql.NullString
			aCreated sql.NullTime
			aUpdated sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.Type, &n.Content, &n.IsArchived, &n.IsShare, &n.IsTop, &noteAcct,
			&n.CreatedAt, &n.UpdatedAt,
			&acctID, &name, &nickname, &password, &role, &aCreated, &aUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		if noteAcct.Valid {
			id := noteAcct.Int64
			n.AccountID = &id
		}
		if acctID.Valid {
			acct = models.Account{
				ID:        acctID.Int64,
				Name:      name.String,
				Nickname:  nickname.String,
				Password:  password.String,
				Role:      role.String,
				CreatedAt: aCreated.Time,
				UpdatedAt: aUpdated.Time,
			}
			n.Account = &acct
		}
		n.Attachments = []models.Attachment{}
		n.Tags = []models.TagOnNote{}
		n.References = []models.NoteReference{}
		n.ReferencedBy = []models.NoteReference{}

		index[n.ID] = len(notes)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	if len(notes) == 0 {
		return notes, nil
	}

	atts, err := attachmentsByNote(ctx, db.conn,
		`SELECT `+attachmentColumns+` FROM attachments a WHERE a.note_id IS NOT NULL ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	for noteID, list := range atts {
		if i, ok := index[noteID]; ok {
			notes[i].Attachments = list
		}
	}

	if err := db.attachTags(ctx, notes, index); err != nil {
		return nil, err
	}
	if err := db.attachReferences(ctx, notes, index); err != nil {
		return nil, err
	}
	return notes, nil
}

func (db *DB) attachTags(ctx context.Context, notes []models.Note, index map[int64]int) error {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT tn.id, tn.note_id, tn.tag_id, t.id, t.name, t.icon, t.parent
		FROM tags_to_note tn
		LEFT JOIN tags t ON t.id = tn.tag_id
		ORDER BY tn.id`)
	if err != nil {
		return fmt.Errorf("failed to query note tags: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var (
			link   models.TagOnNote
			tagID  sql.NullInt64
			name   sql.NullString
			icon   sql.NullString
			parent sql.NullInt64
		)
		if err := rows.Scan(&link.ID, &link.NoteID, &link.TagID, &tagID, &name, &icon, &parent); err != nil {
			return fmt.Errorf("failed to scan note tag: %w", err)
		}
		if tagID.Valid {
			link.Tag = &models.Tag{ID: tagID.Int64, Name: name.String, Icon: icon.String, Parent: parent.Int64}
		}
		if i, ok := index[link.NoteID]; ok {
			notes[i].Tags = append(notes[i].Tags, link)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate note tags: %w", err)
	}
	return nil
}

func (db *DB) attachReferences(ctx context.Context, notes []models.Note, index map[int64]int) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, from_note_id, to_note_id FROM note_references ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query note references: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var ref models.NoteReference
		if err := rows.Scan(&ref.ID, &ref.FromNoteID, &ref.ToNoteID); err != nil {
			return fmt.Errorf("failed to scan note reference: %w", err)
		}
		if i, ok := index[ref.FromNoteID]; ok {
			notes[i].References = append(notes[i].References, ref)
		}
		if i, ok := index[ref.ToNoteID]; ok {
			notes[i].ReferencedBy = append(notes[i].ReferencedBy, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate note references: %w", err)
	}
	return nil
}

// ExportNotes returns the notes owned by f.AccountID whose created_at lies
// within the optional bounds (both inclusive), ordered by id, each with its
// attachments.
func (db *DB) ExportNotes(ctx context.Context, f NoteFilter) ([]models.NoteSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := f.where("n")

	rows, err := db.conn.QueryContext(ctx,
		`SELECT n.id, n.content, n.created_at FROM notes n WHERE `+where+` ORDER BY n.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes for export: %w", err)
	}
	defer closeQuietly(rows)

	notes := []models.NoteSummary{}
	for rows.Next() {
		var n models.NoteSummary
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.Attachments = []models.Attachment{}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	if len(notes) == 0 {
		return notes, nil
	}

	atts, err := attachmentsByNote(ctx, db.conn,
		`SELECT `+attachmentColumns+` FROM attachments a JOIN notes n ON n.id = a.note_id WHERE `+where+` ORDER BY a.id`,
		args...)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		if list, ok := atts[notes[i].ID]; ok {
			notes[i].Attachments = list
		}
	}
	return notes, nil
}

func (f NoteFilter) where(alias string) (string, []any) {
	return query.NewWhereBuilder(alias).
		Equals("account_id", f.AccountID).
		Between("created_at", f.Start, f.End).
		Build()
}
