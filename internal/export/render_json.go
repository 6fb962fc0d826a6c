// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package export

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/notevault/internal/models"
)

func writeJSON(path string, notes []models.NoteSummary) error {
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}
