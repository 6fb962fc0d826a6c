// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package snapshot reads and writes bak.json, the versioned JSON document
// holding every note with its account, attachments, tags and references.
package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/notevault/internal/models"
)

// FileName is the snapshot file written into the backup directory.
const FileName = "bak.json"

// Snapshot is the document persisted to bak.json.
type Snapshot struct {
	Notes      []models.Note `json:"notes"`
	ExportTime time.Time     `json:"exportTime"`
	Version    string        `json:"version"`
}

// ParseError reports snapshot text that is not valid JSON or has no notes
// array.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid snapshot: %s: %v", e.Reason, e.Err)
	}
	return "invalid snapshot: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Serialize renders notes as a 2-space indented snapshot document.
func Serialize(notes []models.Note, version string, exportTime time.Time) ([]byte, error) {
	if notes == nil {
		notes = []models.Note{}
	}
	data, err := json.MarshalIndent(Snapshot{
		Notes:      notes,
		ExportTime: exportTime.UTC(),
		Version:    version,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return data, nil
}

// Deserialize parses a snapshot document. Missing optional fields decode as
// zero values; a missing, null or non-array notes field is a *ParseError.
func Deserialize(data []byte) (*Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &ParseError{Reason: "not a JSON object", Err: err}
	}
	raw, ok := fields["notes"]
	if !ok {
		return nil, &ParseError{Reason: "missing notes array"}
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ParseError{Reason: "notes is not an array"}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &ParseError{Reason: "malformed notes", Err: err}
	}
	return &snap, nil
}

// WriteFile serializes notes to path, creating parent directories.
func WriteFile(path string, notes []models.Note, version string, exportTime time.Time) error {
	data, err := Serialize(notes, version, exportTime)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ReadFile reads and parses the snapshot at path. I/O failures are returned
// wrapped; content problems are a *ParseError.
//
//nolint:gosec // G304: path is built from configuration
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Deserialize(data)
}
