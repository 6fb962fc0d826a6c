// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package restore

import (
	"context"

	"github.com/tomtom215/notevault/internal/models"
)

// EventType classifies a progress event.
type EventType string

const (
	EventSuccess EventType = "success"
	EventSkip    EventType = "skip"
	EventError   EventType = "error"
)

// Progress counts processed items. Current never decreases within a run.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Event reports the outcome of one note or attachment, or a run failure.
type Event struct {
	Type     EventType `json:"type"`
	Content  string    `json:"content"`
	Error    string    `json:"error,omitempty"`
	Progress Progress  `json:"progress"`
}

// Sink receives events in order. A returned error aborts the run.
type Sink func(Event) error

// ChannelSink forwards events to ch, giving up when ctx is done.
func ChannelSink(ctx context.Context, ch chan<- Event) Sink {
	return func(ev Event) error {
		select {
		case ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tracker owns the progress counters of one run. total is fixed up front.
type tracker struct {
	current int
	total   int
}

func newTracker(notes []models.Note, legacy bool) *tracker {
	total := len(notes) + models.AttachmentCount(notes)
	if legacy {
		total--
	}
	return &tracker{total: total}
}

func (t *tracker) advance() {
	t.current++
}

func (t *tracker) event(typ EventType, content string, err error) Event {
	ev := Event{
		Type:     typ,
		Content:  content,
		Progress: Progress{Current: t.current, Total: t.total},
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
