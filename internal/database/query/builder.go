// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package query builds parameterized WHERE clauses for the database
// package.
//
//	wb := query.NewWhereBuilder("n")
//	wb.Equals("account_id", 7).Between("created_at", start, end)
//	where, args := wb.Build()
//	// n.account_id = ? AND n.created_at >= ? AND n.created_at <= ?
package query

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder accumulates AND-ed conditions on columns of one table alias.
// Column names are trusted identifiers; values are always bound as
// arguments.
type WhereBuilder struct {
	alias   string
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a builder. alias may be empty for unqualified
// columns.
func NewWhereBuilder(alias string) *WhereBuilder {
	return &WhereBuilder{alias: alias}
}

func (wb *WhereBuilder) column(name string) string {
	if wb.alias == "" {
		return name
	}
	return wb.alias + "." + name
}

// Equals adds column = value.
func (wb *WhereBuilder) Equals(column string, value interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, wb.column(column)+" = ?")
	wb.args = append(wb.args, value)
	return wb
}

// Between adds inclusive bounds on a timestamp column. Nil bounds are
// skipped; times are compared in UTC.
func (wb *WhereBuilder) Between(column string, start, end *time.Time) *WhereBuilder {
	if start != nil {
		wb.clauses = append(wb.clauses, wb.column(column)+" >= ?")
		wb.args = append(wb.args, start.UTC())
	}
	if end != nil {
		wb.clauses = append(wb.clauses, wb.column(column)+" <= ?")
		wb.args = append(wb.args, end.UTC())
	}
	return wb
}

// In adds column IN (...). An empty list is skipped.
func (wb *WhereBuilder) In(column string, values ...interface{}) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", wb.column(column), placeholders))
	wb.args = append(wb.args, values...)
	return wb
}

// Build returns the clause and its arguments. An empty builder yields
// "1=1" so callers can always write "WHERE " + clause.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}
