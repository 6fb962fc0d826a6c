// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Note is a note together with the relations a backup snapshot carries.
// JSON field names are camelCase to stay readable by existing clients and
// older bak.json files.
type Note struct {
	ID           int64           `json:"id"`
	Type         int             `json:"type"`
	Content      string          `json:"content"`
	IsArchived   bool            `json:"isArchived"`
	IsShare      bool            `json:"isShare"`
	IsTop        bool            `json:"isTop"`
	AccountID    *int64          `json:"accountId,omitempty"`
	Account      *Account        `json:"account,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Attachments  []Attachment    `json:"attachments"`
	Tags         []TagOnNote     `json:"tags"`
	References   []NoteReference `json:"references"`
	ReferencedBy []NoteReference `json:"referencedBy"`
}

// NoteSummary is the projection used by the export job.
type NoteSummary struct {
	ID          int64        `json:"id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// NewNote holds the fields restore copies from a snapshot note.
type NewNote struct {
	Content    string
	Type       int
	IsArchived bool
	IsTop      bool
	IsShare    bool
	AccountID  int64
}

// Account owns notes. Password is an already-hashed credential and is copied
// verbatim when restore recreates a missing account.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoleUser is the role given to accounts created by restore.
const RoleUser = "user"

// Attachment is a file owned by exactly one note. Path is the public URL path
// the file is served from, e.g. /api/file/photo.png.
type Attachment struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	Size          FileSize  `json:"size"`
	Type          string    `json:"type"`
	IsShare       bool      `json:"isShare"`
	SharePassword string    `json:"sharePassword"`
	NoteID        *int64    `json:"noteId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FileSize is a byte count. It decodes from a JSON number or a numeric
// string, since decimal columns are commonly serialized as strings.
type FileSize int64

// UnmarshalJSON implements json.Unmarshaler.
func (s *FileSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	data = bytes.Trim(data, `"`)
	if len(data) == 0 {
		*s = 0
		return nil
	}
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*s = FileSize(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid file size %q: %w", data, err)
	}
	*s = FileSize(f)
	return nil
}

// Tag is a hierarchical label.
type Tag struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Parent int64  `json:"parent"`
}

// TagOnNote links a tag to a note.
type TagOnNote struct {
	ID     int64 `json:"id"`
	NoteID int64 `json:"noteId"`
	TagID  int64 `json:"tagId"`
	Tag    *Tag  `json:"tag,omitempty"`
}

// NoteReference is a directed link between two notes.
type NoteReference struct {
	ID         int64 `json:"id"`
	FromNoteID int64 `json:"fromNoteId"`
	ToNoteID   int64 `json:"toNoteId"`
}

// AttachmentCount returns the number of attachments across notes.
func AttachmentCount(notes []Note) int {
	n := 0
	for i := range notes {
		n += len(notes[i].Attachments)
	}
	return n
}
