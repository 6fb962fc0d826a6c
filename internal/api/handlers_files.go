// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package api

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

var errInvalidPath = errors.New("path must stay inside the uploads directory")

// resolveUploadPath maps a public file path ("/api/file/a.bko") or an
// uploads-relative path ("a.bko") to a file under UploadsDir.
func (h *Handler) resolveUploadPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if prefix := strings.TrimSuffix(h.cfg.FilePrefix, "/"); strings.HasPrefix(p, prefix+"/") {
		p = strings.TrimPrefix(p, prefix)
	}
	p = strings.TrimLeft(p, "/")
	if p == "" || strings.ContainsRune(p, 0) {
		return "", errInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", errInvalidPath
		}
	}

	root, err := filepath.Abs(h.cfg.UploadsDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(path.Clean(p)))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", errInvalidPath
	}
	return full, nil
}

// ServeFile serves attachments, exports and backup archives from the
// uploads directory. Directories are not listed.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	full, err := h.resolveUploadPath(chi.URLParam(r, "*"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PATH", err.Error(), nil)
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "File not found", nil)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, full)
}
