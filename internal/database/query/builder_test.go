// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package query

import (
	"testing"
	"time"
)

func TestWhereBuilder(t *testing.T) {
	start := time.Date(2025, 1, 1, 2, 0, 0, 0, time.FixedZone("CET", 3600))
	end := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		build     func() *WhereBuilder
		wantWhere string
		wantArgs  int
	}{
		{"empty", func() *WhereBuilder { return NewWhereBuilder("n") }, "1=1", 0},
		{
			"account only",
			func() *WhereBuilder { return NewWhereBuilder("n").Equals("account_id", 7) },
			"n.account_id = ?", 1,
		},
		{
			"range",
			func() *WhereBuilder {
				return NewWhereBuilder("n").Equals("account_id", 7).Between("created_at", &start, &end)
			},
			"n.account_id = ? AND n.created_at >= ? AND n.created_at <= ?", 3,
		},
		{
			"open start",
			func() *WhereBuilder { return NewWhereBuilder("").Between("created_at", nil, &end) },
			"created_at <= ?", 1,
		},
		{
			"in",
			func() *WhereBuilder { return NewWhereBuilder("a").In("note_id", 1, 2, 3).In("name") },
			"a.note_id IN (?, ?, ?)", 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := tt.build().Build()
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %v, want %d", args, tt.wantArgs)
			}
		})
	}
}

func TestWhereBuilderUTC(t *testing.T) {
	start := time.Date(2025, 1, 1, 2, 0, 0, 0, time.FixedZone("CET", 3600))
	_, args := NewWhereBuilder("n").Between("created_at", &start, nil).Build()
	got, ok := args[0].(time.Time)
	if !ok || got.Location() != time.UTC || got.Hour() != 1 {
		t.Errorf("arg = %v, want 01:00 UTC", args[0])
	}
}
