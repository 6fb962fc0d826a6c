// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/notevault/internal/models"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NoteWriter is the set of writes restore performs for a single note. Both
// *DB and the transaction handle passed to WithTx implement it.
type NoteWriter interface {
	CreateNote(ctx context.Context, n models.NewNote) (*models.Note, error)
	UpdateNoteOwnership(ctx context.Context, noteID, accountID int64, createdAt, updatedAt time.Time) error
	FindAccountByName(ctx context.Context, name string) (*models.Account, error)
	CreateAccount(ctx context.Context, a models.Account) (*models.Account, error)
}

// Tx is a NoteWriter bound to one transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) CreateNote(ctx context.Context, n models.NewNote) (*models.Note, error) {
	return createNote(ctx, t.tx, n)
}

func (t *Tx) UpdateNoteOwnership(ctx context.Context, noteID, accountID int64, createdAt, updatedAt time.Time) error {
	return updateNoteOwnership(ctx, t.tx, noteID, accountID, createdAt, updatedAt)
}

func (t *Tx) FindAccountByName(ctx context.Context, name string) (*models.Account, error) {
	return findAccountByName(ctx, t.tx, name)
}

func (t *Tx) CreateAccount(ctx context.Context, a models.Account) (*models.Account, error) {
	return createAccount(ctx, t.tx, a)
}

// WithTx runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(w NoteWriter) error) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
