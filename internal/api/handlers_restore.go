// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/restore"
)

// RestoreRequest names the archive to restore and the account that will own
// the restored notes. FilePath is either the public path returned by the
// backup task or a path relative to the uploads directory.
type RestoreRequest struct {
	FilePath  string `json:"filePath" validate:"required,relpath"`
	AccountID int64  `json:"accountId" validate:"required,gt=0"`
}

// Restore streams restore events as newline-delimited JSON, one event per
// line, flushed as they occur.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	archivePath, err := h.resolveUploadPath(req.FilePath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PATH", err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	runID := logging.RequestIDFromContext(r.Context())

	sink := func(ev restore.Event) error {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to write restore event: %w", err)
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("failed to flush restore event: %w", err)
		}
		h.broadcastRestore(runID, ev)
		return nil
	}

	err = h.deps.Restorer.Run(r.Context(), restore.Request{ArchivePath: archivePath, AccountID: req.AccountID}, sink)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Restore stream ended early")
	}
}

// RestoreWebSocket runs a restore and sends each event as a websocket text
// message. The connection is closed normally when the run ends; a client
// disconnect cancels the run before the next note.
func (h *Handler) RestoreWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accountID, _ := strconv.ParseInt(q.Get("accountId"), 10, 64)
	req := RestoreRequest{FilePath: q.Get("filePath"), AccountID: accountID}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr, nil)
		return
	}
	archivePath, err := h.resolveUploadPath(req.FilePath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PATH", err.Error(), nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Restore websocket upgrade failed")
		return
	}
	defer conn.Close() //nolint:errcheck // Best effort cleanup

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	runID := logging.RequestIDFromContext(r.Context())
	sink := func(ev restore.Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		if err := conn.WriteJSON(ev); err != nil {
			return fmt.Errorf("failed to send restore event: %w", err)
		}
		h.broadcastRestore(runID, ev)
		return nil
	}

	if err := h.deps.Restorer.Run(ctx, restore.Request{ArchivePath: archivePath, AccountID: req.AccountID}, sink); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Restore websocket ended early")
		return
	}

	_ = conn.WriteControl( //nolint:errcheck // Best effort cleanup
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "restore finished"),
		time.Now().Add(wsWriteWait),
	)
}

func (h *Handler) broadcastRestore(runID string, ev restore.Event) {
	if h.deps.Hub != nil {
		h.deps.Hub.BroadcastRestoreProgress(runID, ev)
	}
}
