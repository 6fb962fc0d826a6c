// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/notevault/internal/models"
)

func sampleNotes() []models.Note {
	noteID := int64(1)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return []models.Note{
		{
			ID:        1,
			Content:   "hello world",
			IsTop:     true,
			Account:   &models.Account{ID: 7, Name: "alice", Password: "hash", Role: "superadmin"},
			CreatedAt: created,
			UpdatedAt: created,
			Attachments: []models.Attachment{
				{ID: 3, Name: "a.png", Path: "/api/file/a.png", Size: 42, NoteID: &noteID},
			},
			Tags:         []models.TagOnNote{{ID: 1, NoteID: 1, TagID: 2, Tag: &models.Tag{ID: 2, Name: "work"}}},
			References:   []models.NoteReference{},
			ReferencedBy: []models.NoteReference{},
		},
		{ID: 2, Content: "second", CreatedAt: created, UpdatedAt: created},
	}
}

func TestSerializeShape(t *testing.T) {
	t.Parallel()

	exported := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	data, err := Serialize(sampleNotes(), "1.2.3", exported)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)

	if !strings.HasPrefix(s, "{\n  \"notes\": [") {
		t.Errorf("expected 2-space indented document, got prefix %q", s[:20])
	}
	for _, want := range []string{`"exportTime": "2026-01-18T00:00:00Z"`, `"version": "1.2.3"`, `"isTop": true`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	notes := sampleNotes()
	data, err := Serialize(notes, "1.0.0", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	snap, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(snap.Notes) != len(notes) {
		t.Fatalf("got %d notes, want %d", len(snap.Notes), len(notes))
	}
	got := snap.Notes[0]
	if got.Content != "hello world" || !got.IsTop || got.Account == nil || got.Account.Name != "alice" {
		t.Errorf("note fields lost: %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Size != 42 || *got.Attachments[0].NoteID != 1 {
		t.Errorf("attachments lost: %+v", got.Attachments)
	}
	if !got.CreatedAt.Equal(notes[0].CreatedAt) {
		t.Errorf("CreatedAt = %s", got.CreatedAt)
	}
	if snap.Version != "1.0.0" {
		t.Errorf("Version = %q", snap.Version)
	}
}

func TestDeserializeErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":         `{"notes": [`,
		"array document":   `[]`,
		"missing notes":    `{"version":"1"}`,
		"null notes":       `{"notes":null}`,
		"notes not array":  `{"notes":{"id":1}}`,
		"bad note element": `{"notes":[{"id":"x"}]}`,
	}
	for name, input := range tests {
		_, err := Deserialize([]byte(input))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected *ParseError, got %v", name, err)
		}
	}
}

func TestDeserializeToleratesMissingOptionalFields(t *testing.T) {
	t.Parallel()

	snap, err := Deserialize([]byte(`{"notes":[{"content":"bare","attachments":[{"name":"x.txt","size":"12"}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	n := snap.Notes[0]
	if n.Content != "bare" || n.Account != nil || n.IsTop {
		t.Errorf("unexpected note %+v", n)
	}
	if n.Attachments[0].Size != 12 {
		t.Errorf("string size not decoded: %d", n.Attachments[0].Size)
	}
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "backup", FileName)
	if err := WriteFile(path, sampleNotes(), "1.0.0", time.Now()); err != nil {
		t.Fatal(err)
	}
	snap, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Notes) != 2 {
		t.Errorf("got %d notes", len(snap.Notes))
	}

	_, err = ReadFile(filepath.Join(t.TempDir(), "absent.json"))
	var pe *ParseError
	if err == nil || errors.As(err, &pe) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file should be a wrapped not-exist error, got %v", err)
	}
}
