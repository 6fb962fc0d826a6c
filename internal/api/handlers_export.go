// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/notevault/internal/export"
	"github.com/tomtom215/notevault/internal/models"
)

// ExportRequest selects the notes to export. Dates are RFC 3339 timestamps
// or plain YYYY-MM-DD dates (UTC midnight); both bounds are inclusive.
type ExportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	AccountID int64  `json:"accountId" validate:"required,gt=0"`
	Format    string `json:"format" validate:"omitempty,exportformat"`
}

// Export runs an export job and returns the archive path.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req ExportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	startDate, err := parseDate("startDate", req.StartDate)
	if err != nil {
		respondAPIError(w, http.StatusBadRequest, err, nil)
		return
	}
	endDate, err := parseDate("endDate", req.EndDate)
	if err != nil {
		respondAPIError(w, http.StatusBadRequest, err, nil)
		return
	}
	format, ferr := export.ParseFormat(req.Format)
	if ferr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", ferr.Error(), nil)
		return
	}

	res, exportErr := h.deps.Exporter.Export(r.Context(), export.Request{
		BaseURL:   h.baseURL(r),
		StartDate: startDate,
		EndDate:   endDate,
		AccountID: req.AccountID,
		Format:    format,
	})
	switch {
	case errors.Is(exportErr, export.ErrNoNotesFound):
		respondError(w, http.StatusNotFound, "NO_NOTES", "No notes found", nil)
		return
	case exportErr != nil:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Export failed", exportErr)
		return
	}

	if h.deps.Hub != nil {
		h.deps.Hub.BroadcastExportCompleted(req.AccountID, string(format), res)
	}
	respondSuccess(w, http.StatusOK, res, start)
}

// baseURL is where the export downloads attachments from: the configured
// public URL, or the scheme and host the request arrived on.
func (h *Handler) baseURL(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return strings.TrimSuffix(h.cfg.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host
}

func parseDate(field, value string) (*time.Time, *models.APIError) {
	t, err := export.ParseDate(value)
	if err != nil {
		return nil, &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", field),
			Details: map[string]interface{}{"field": field, "value": value},
		}
	}
	return t, nil
}
