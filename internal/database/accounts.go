// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/notevault/internal/models"
)

// FindAccountByName returns ErrNotFound when no account has that name.
func (db *DB) FindAccountByName(ctx context.Context, name string) (*models.Account, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return findAccountByName(ctx, db.conn, name)
}

// CreateAccount inserts an account. Empty role defaults to "user"; zero
// timestamps default to now.
func (db *DB) CreateAccount(ctx context.Context, a models.Account) (*models.Account, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return createAccount(ctx, db.conn, a)
}

func findAccountByName(ctx context.Context, q querier, name string) (*models.Account, error) {
	var a models.Account
	err := q.QueryRowContext(ctx, `
		SELECT id, name, nickname, password, role, created_at, updated_at
		FROM accounts WHERE name = ?`, name).
		Scan(&a.ID, &a.Name, &a.Nickname, &a.Password, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to find account %q: %w", name, notFound(err))
	}
	return &a, nil
}

func createAccount(ctx context.Context, q querier, a models.Account) (*models.Account, error) {
	now := time.Now().UTC()
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()

	err := q.QueryRowContext(ctx, `
		INSERT INTO accounts (name, nickname, password, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.Name, a.Nickname, a.Password, a.Role, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create account %q: %w", a.Name, err)
	}
	return &a, nil
}
