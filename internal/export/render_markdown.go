// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/notevault/internal/models"
)

var imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|svg)$`)

// attachmentLink renders the markdown appended for a downloaded attachment.
func attachmentLink(name string) string {
	if imageExt.MatchString(name) {
		return fmt.Sprintf("\n![%s](./files/%s)", name, name)
	}
	return fmt.Sprintf("\n[%s](./files/%s)", name, name)
}

func markdownFileName(n models.NoteSummary) string {
	return fmt.Sprintf("note-%d-%d.md", n.ID, n.CreatedAt.UnixMilli())
}

// writeMarkdown renders every note to its own file, downloading attachments
// into files/. Notes and downloads run concurrently; links keep attachment
// order.
func (e *Exporter) writeMarkdown(ctx context.Context, exportDir, baseURL string, notes []models.NoteSummary) error {
	filesDir := filepath.Join(exportDir, "files")
	if err := os.MkdirAll(filesDir, 0o750); err != nil {
		return fmt.Errorf("failed to create attachments directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.NoteConcurrency)
	for _, note := range notes {
		g.Go(func() error {
			content := note.Content
			if len(note.Attachments) > 0 {
				content += e.downloadAttachments(gctx, filesDir, baseURL, note.Attachments)
			}
			path := filepath.Join(exportDir, markdownFileName(note))
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return fmt.Errorf("failed to write note %d: %w", note.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// downloadAttachments fetches every attachment and returns the links for the
// ones that succeeded. Failures are logged and skipped.
func (e *Exporter) downloadAttachments(ctx context.Context, filesDir, baseURL string, atts []models.Attachment) string {
	ok := make([]bool, len(atts))
	names := make([]string, len(atts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.DownloadConcurrency)
	for i, att := range atts {
		names[i] = safeName(att.Name)
		g.Go(func() error {
			if err := e.download(gctx, baseURL+att.Path, filepath.Join(filesDir, names[i])); err != nil {
				e.logger.Warn().Err(err).Str("attachment", att.Name).Msg("Failed to download attachment")
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	g.Wait() //nolint:errcheck // Workers never return errors

	var b strings.Builder
	for i := range atts {
		if ok[i] {
			b.WriteString(attachmentLink(names[i]))
		}
	}
	return b.String()
}

func (e *Exporter) download(ctx context.Context, url, dest string) (err error) {
	if e.downloader == nil {
		return errors.New("no downloader configured")
	}
	f, err := os.Create(dest) //nolint:gosec // dest is built from a cleaned base name
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dest) //nolint:errcheck // Best effort cleanup
		}
	}()
	return e.downloader.Download(ctx, url, f)
}

// safeName strips directories from an attachment name so it stays inside
// files/.
func safeName(name string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "attachment"
	}
	return base
}
