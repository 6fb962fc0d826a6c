// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

/*
archive.go - Zip Archive Codec

Pack collects a directory tree with archives.FilesFromDisk and writes every
regular file (and every directory, so empty ones survive) into a
deflate-compressed zip using slash-separated paths relative to the source
root. Unpack streams the entries back through archives.Zip.Extract.

Safety on extraction:
  - entry names that resolve outside the destination are rejected
  - symlink entries are skipped
  - each file is capped at MaxEntrySize and copied through a LimitReader

Pack excludes the archive it is writing when that file sits inside the
source tree, so the backup job can pack the application root into a file
under the same root.
*/
//nolint:staticcheck // File documentation, not package doc
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

// MaxEntrySize caps a single extracted file (1 GiB).
const MaxEntrySize = 1 << 30

var (
	// ErrUnsafePath marks an entry whose name escapes the destination.
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrExists is returned by Unpack without overwrite when a file exists.
	ErrExists = errors.New("destination file exists")
	// ErrTooLarge marks an entry above MaxEntrySize.
	ErrTooLarge = errors.New("archive entry too large")
)

// Stats summarizes a Pack or Unpack.
type Stats struct {
	Files int   `json:"files"`
	Dirs  int   `json:"dirs"`
	Bytes int64 `json:"bytes"`
}

func codec() archives.Zip {
	return archives.Zip{Compression: zip.Deflate}
}

// Pack writes srcDir into a new zip at archivePath, replacing any existing
// file. A partially written archive is removed on failure.
//
//nolint:gosec // G304: archivePath is built from configuration
func Pack(ctx context.Context, srcDir, archivePath string) (stats Stats, err error) {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o750); err != nil {
		return Stats{}, fmt.Errorf("failed to create archive directory: %w", err)
	}
	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close archive file: %w", closeErr)
		}
		if err != nil {
			os.Remove(archivePath) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	return PackTo(ctx, srcDir, out, archivePath)
}

// PackTo writes srcDir as a zip stream to w. Paths listed in exclude are
// skipped; directories in exclude are skipped with their contents.
func PackTo(ctx context.Context, srcDir string, w io.Writer, exclude ...string) (Stats, error) {
	root, err := filepath.Abs(srcDir)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to resolve %s: %w", srcDir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("source %s is not a directory", srcDir)
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	// A trailing separator on the key adds the directory contents at the
	// archive root without the directory itself.
	found, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		root + string(os.PathSeparator): "",
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to pack %s: %w", srcDir, err)
	}

	files, stats, err := selectEntries(ctx, root, found, exclude)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to pack %s: %w", srcDir, err)
	}
	if err := codec().Archive(ctx, w, files); err != nil {
		return stats, fmt.Errorf("failed to pack %s: %w", srcDir, err)
	}
	return stats, nil
}

// selectEntries drops excluded paths, the source root and anything that is
// neither a regular file nor a directory, and totals what remains.
func selectEntries(ctx context.Context, root string, found []archives.FileInfo, exclude []string) ([]archives.FileInfo, Stats, error) {
	var skip []string
	for _, p := range exclude {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		skip = append(skip, filepath.ToSlash(rel))
	}
	excluded := func(name string) bool {
		for _, s := range skip {
			if name == s || strings.HasPrefix(name, s+"/") {
				return true
			}
		}
		return false
	}

	var stats Stats
	files := make([]archives.FileInfo, 0, len(found))
	for _, f := range found {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		name := strings.TrimSuffix(f.NameInArchive, "/")
		if name == "" || name == "." || excluded(name) {
			continue
		}
		switch {
		case f.IsDir():
			f.NameInArchive = name + "/"
			stats.Dirs++
		case f.Mode().IsRegular():
			f.NameInArchive = name
			stats.Files++
			stats.Bytes += f.Size()
		default:
			// sockets, devices and symlinks are not archived
			continue
		}
		files = append(files, f)
	}
	return files, stats, nil
}

// Unpack extracts archivePath into destDir. With overwrite=false an
// existing file fails the whole operation with ErrExists.
//
//nolint:gosec // G304: archivePath is resolved by the caller
func Unpack(ctx context.Context, archivePath, destDir string, overwrite bool) (Stats, error) {
	src, err := os.Open(archivePath)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer src.Close() //nolint:errcheck // read-only archive

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return Stats{}, fmt.Errorf("failed to create destination: %w", err)
	}

	var stats Stats
	handler := func(ctx context.Context, f archives.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		destPath, err := validateAndBuildDestPath(destDir, f.NameInArchive)
		if err != nil {
			return err
		}

		switch {
		case f.IsDir():
			if err := os.MkdirAll(destPath, 0o750); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", f.NameInArchive, err)
			}
			stats.Dirs++
			return nil
		case f.Mode()&fs.ModeSymlink != 0:
			return nil
		}

		if f.Size() > MaxEntrySize {
			return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, f.NameInArchive, f.Size(), MaxEntrySize)
		}
		if !overwrite {
			if _, err := os.Lstat(destPath); err == nil {
				return fmt.Errorf("%w: %s", ErrExists, destPath)
			}
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.NameInArchive, err)
		}

		n, err := extractFile(f, destPath)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.NameInArchive, err)
		}
		stats.Files++
		stats.Bytes += n
		return nil
	}

	if err := codec().Extract(ctx, src, handler); err != nil {
		return stats, fmt.Errorf("failed to unpack %s: %w", archivePath, err)
	}
	return stats, nil
}

// validateAndBuildDestPath joins name onto destDir and rejects results that
// leave destDir.
func validateAndBuildDestPath(destDir, name string) (string, error) {
	if name == "" || strings.Contains(name, "\x00") || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	base := filepath.Clean(destDir)
	destPath := filepath.Join(base, filepath.FromSlash(name))
	if destPath != base && !strings.HasPrefix(destPath, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return destPath, nil
}

//nolint:gosec // G110: copy is bounded by LimitReader; G304: destPath validated by caller
func extractFile(f archives.FileInfo, destPath string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck // read-only entry

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, err
	}

	limit := f.Size()
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	closeErr := out.Close()
	switch {
	case err != nil:
	case n > limit:
		err = fmt.Errorf("%w: %s exceeds its declared size", ErrTooLarge, f.NameInArchive)
	case closeErr != nil:
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return n, err
	}
	return n, nil
}
