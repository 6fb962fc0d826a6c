// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package database

import (
	"context"
	"fmt"
)

// notes carries no secondary index: restore rewrites account_id and
// created_at right after insert, and DuckDB turns updates of indexed columns
// into delete+insert.
//
// Timestamps have no column defaults: every write passes them from Go in UTC,
// which keeps the schema free of ICU-dependent TIMESTAMPTZ defaults.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS accounts_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS notes_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS attachments_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS tags_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS tags_to_note_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS note_references_id_seq START 1`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGINT PRIMARY KEY DEFAULT nextval('accounts_id_seq'),
		name VARCHAR NOT NULL UNIQUE,
		nickname VARCHAR NOT NULL DEFAULT '',
		password VARCHAR NOT NULL DEFAULT '',
		role VARCHAR NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS notes (
		id BIGINT PRIMARY KEY DEFAULT nextval('notes_id_seq'),
		type INTEGER NOT NULL DEFAULT 0,
		content VARCHAR NOT NULL DEFAULT '',
		is_archived BOOLEAN NOT NULL DEFAULT false,
		is_share BOOLEAN NOT NULL DEFAULT false,
		is_top BOOLEAN NOT NULL DEFAULT false,
		account_id BIGINT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS attachments (
		id BIGINT PRIMARY KEY DEFAULT nextval('attachments_id_seq'),
		name VARCHAR NOT NULL,
		path VARCHAR NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		type VARCHAR NOT NULL DEFAULT '',
		is_share BOOLEAN NOT NULL DEFAULT false,
		share_password VARCHAR NOT NULL DEFAULT '',
		note_id BIGINT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id BIGINT PRIMARY KEY DEFAULT nextval('tags_id_seq'),
		name VARCHAR NOT NULL,
		icon VARCHAR NOT NULL DEFAULT '',
		parent BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS tags_to_note (
		id BIGINT PRIMARY KEY DEFAULT nextval('tags_to_note_id_seq'),
		note_id BIGINT NOT NULL,
		tag_id BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS note_references (
		id BIGINT PRIMARY KEY DEFAULT nextval('note_references_id_seq'),
		from_note_id BIGINT NOT NULL,
		to_note_id BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS scheduled_tasks (
		name VARCHAR PRIMARY KEY,
		schedule VARCHAR NOT NULL,
		is_running BOOLEAN NOT NULL DEFAULT false,
		is_success BOOLEAN NOT NULL DEFAULT false,
		last_run TIMESTAMP,
		output VARCHAR
	)`,

	`CREATE INDEX IF NOT EXISTS idx_attachments_note ON attachments(note_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_name ON attachments(name)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
