// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package restore replays a backup archive into the live datastore.
//
// A run unpacks the archive over the application root, reads bak.json and
// recreates every note (owned by the requesting account, then reassigned to
// the account named in the snapshot) followed by its attachments. Progress
// is reported as an ordered stream of events; a failed note or attachment
// produces an error event and the run continues with the next item.
package restore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/tomtom215/notevault/internal/archive"
	"github.com/tomtom215/notevault/internal/config"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/metrics"
	"github.com/tomtom215/notevault/internal/models"
	"github.com/tomtom215/notevault/internal/snapshot"
)

// contentPreviewLen is the number of characters of note content carried in
// an event.
const contentPreviewLen = 30

// Store is the datastore surface used by a restore run.
type Store interface {
	database.NoteWriter
	FindAttachmentByName(ctx context.Context, name string) (*models.Attachment, error)
	CreateAttachment(ctx context.Context, a models.Attachment) (*models.Attachment, error)
}

// TxStore is implemented by stores that can run the per-note writes in one
// transaction.
type TxStore interface {
	WithTx(ctx context.Context, fn func(w database.NoteWriter) error) error
}

// Config holds the restore settings.
type Config struct {
	RootDir   string
	BackupDir string

	LegacyProgressTotal bool
	PerNoteTransaction  bool
}

// ConfigFrom extracts the restore settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		RootDir:             cfg.Storage.RootDir,
		BackupDir:           cfg.Storage.BackupDir,
		LegacyProgressTotal: cfg.Restore.LegacyProgressTotal,
		PerNoteTransaction:  cfg.Restore.PerNoteTransaction,
	}
}

// Request identifies the archive to restore and the account performing it.
type Request struct {
	ArchivePath string
	AccountID   int64
}

// Pipeline runs restores. It is safe for concurrent use, although two runs
// over the same root will overwrite each other's unpacked files.
type Pipeline struct {
	cfg    Config
	store  Store
	logger zerolog.Logger
}

// NewPipeline creates a restore pipeline.
func NewPipeline(cfg Config, store Store) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		logger: logging.WithComponent("restore"),
	}
}

// Run restores req and delivers every event to sink in order. It returns
// only a sink error or the context error; item failures are reported as
// events.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) (err error) {
	ctx = logging.ContextWithRunID(ctx, logging.NewRunID())
	log := logging.Ctx(ctx).With().Str("component", "restore").Str("archive", req.ArchivePath).Logger()

	outcome := "completed"
	defer func() {
		if err != nil {
			outcome = "aborted"
		}
		metrics.RecordRestoreRun(outcome)
	}()

	emit := func(ev Event) error {
		metrics.RecordRestoreEvent(string(ev.Type))
		return sink(ev)
	}

	snap, err := p.load(ctx, req.ArchivePath)
	if err != nil {
		log.Error().Err(err).Msg("Restore failed to load archive")
		outcome = "failed"
		return emit(Event{
			Type:    EventError,
			Content: err.Error(),
			Error:   err.Error(),
		})
	}

	t := newTracker(snap.Notes, p.cfg.LegacyProgressTotal)
	log.Info().Int("notes", len(snap.Notes)).Int("total", t.total).Msg("Restore started")

	for i := range snap.Notes {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("current", t.current).Msg("Restore canceled")
			return err
		}
		if err := p.restoreNote(ctx, req, &snap.Notes[i], t, emit); err != nil {
			return err
		}
	}

	log.Info().Int("current", t.current).Msg("Restore finished")
	return nil
}

// Stream runs req in a goroutine and returns its events. The channel is
// closed when the run ends. Canceling ctx stops the run before the next
// note; the consumer must keep receiving or cancel.
func (p *Pipeline) Stream(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		err := p.Run(ctx, req, ChannelSink(ctx, ch))
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.logger.Error().Err(err).Msg("Restore stream ended with error")
		}
	}()
	return ch
}

func (p *Pipeline) load(ctx context.Context, archivePath string) (*snapshot.Snapshot, error) {
	if _, err := archive.Unpack(ctx, archivePath, p.cfg.RootDir, true); err != nil {
		return nil, err
	}
	return snapshot.ReadFile(filepath.Join(p.cfg.BackupDir, snapshot.FileName))
}

func (p *Pipeline) restoreNote(ctx context.Context, req Request, note *models.Note, t *tracker, emit Sink) error {
	t.advance()
	preview := truncate(note.Content, contentPreviewLen)

	newNote, err := p.writeNote(ctx, req, note)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("snapshot_note_id", note.ID).Msg("Failed to restore note")
		return emit(t.event(EventError, preview, err))
	}
	if err := emit(t.event(EventSuccess, preview, nil)); err != nil {
		return err
	}

	for _, att := range note.Attachments {
		t.advance()
		if err := p.restoreAttachment(ctx, newNote.ID, att); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("attachment", att.Name).Msg("Failed to restore attachment")
			if err := emit(t.event(EventError, att.Name, err)); err != nil {
				return err
			}
			continue
		}
		if err := emit(t.event(EventSuccess, att.Name, nil)); err != nil {
			return err
		}
	}
	return nil
}

// writeNote creates the note and reassigns it to the snapshot account,
// inside one transaction when configured and supported.
func (p *Pipeline) writeNote(ctx context.Context, req Request, note *models.Note) (*models.Note, error) {
	var created *models.Note
	write := func(w database.NoteWriter) error {
		n, err := recreateNote(ctx, w, req.AccountID, note)
		created = n
		return err
	}

	if txs, ok := p.store.(TxStore); ok && p.cfg.PerNoteTransaction {
		if err := txs.WithTx(ctx, write); err != nil {
			return nil, err
		}
		return created, nil
	}
	if err := write(p.store); err != nil {
		return nil, err
	}
	return created, nil
}

func recreateNote(ctx context.Context, w database.NoteWriter, callerID int64, note *models.Note) (*models.Note, error) {
	created, err := w.CreateNote(ctx, models.NewNote{
		Content:    note.Content,
		Type:       note.Type,
		IsArchived: note.IsArchived,
		IsTop:      note.IsTop,
		IsShare:    note.IsShare,
		AccountID:  callerID,
	})
	if err != nil {
		return nil, err
	}

	if note.Account == nil || note.Account.Name == "" {
		return created, errors.New("note has no account")
	}

	account, err := w.FindAccountByName(ctx, note.Account.Name)
	switch {
	case errors.Is(err, database.ErrNotFound):
		account, err = w.CreateAccount(ctx, models.Account{
			Name:     note.Account.Name,
			Password: note.Account.Password,
			Role:     models.RoleUser,
		})
		if err != nil {
			return created, err
		}
	case err != nil:
		return created, err
	}

	if err := w.UpdateNoteOwnership(ctx, created.ID, account.ID, note.CreatedAt, note.UpdatedAt); err != nil {
		return created, err
	}
	created.AccountID = &account.ID
	// Missing snapshot timestamps keep the values set at creation.
	if !note.CreatedAt.IsZero() {
		created.CreatedAt = note.CreatedAt
	}
	if !note.UpdatedAt.IsZero() {
		created.UpdatedAt = note.UpdatedAt
	}
	return created, nil
}

func (p *Pipeline) restoreAttachment(ctx context.Context, noteID int64, att models.Attachment) error {
	// The lookup result is not used; a new row is always created.
	if _, err := p.store.FindAttachmentByName(ctx, att.Name); err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	att.ID = 0
	att.NoteID = &noteID
	if _, err := p.store.CreateAttachment(ctx, att); err != nil {
		return fmt.Errorf("failed to restore attachment %q: %w", att.Name, err)
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
