// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package export

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/notevault/internal/models"
)

const csvHeader = "ID,Content,Created At"

// isoMillis matches JavaScript's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// renderCSV quotes only the content column and doubles embedded quotes.
// Rows are joined by \n with no trailing newline.
func renderCSV(notes []models.NoteSummary) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for _, n := range notes {
		b.WriteByte('\n')
		b.WriteString(strconv.FormatInt(n.ID, 10))
		b.WriteString(`,"`)
		b.WriteString(strings.ReplaceAll(n.Content, `"`, `""`))
		b.WriteString(`",`)
		b.WriteString(formatISO(n.CreatedAt))
	}
	return b.String()
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

func writeCSV(path string, notes []models.NoteSummary) error {
	if err := os.WriteFile(path, []byte(renderCSV(notes)), 0o600); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
