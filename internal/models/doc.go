// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

/*
Package models defines the data shared by the datastore, the jobs and the
HTTP API.

Model Categories:

 1. Notes and relations:
    - Note: a note with its account, attachments, tags and references, as
    written to bak.json
    - NoteSummary: the projection the export job renders
    - NewNote: fields copied when restore recreates a note
    - Account, Attachment, Tag, TagOnNote, NoteReference

 2. Scheduled tasks:
    - ScheduledTask: the persisted row, keyed by name
    - TaskUpdate: partial updates; nil fields are untouched
    - TaskStatus: the row joined with the in-memory timer state

 3. API envelope:
    - APIResponse, Metadata, APIError

JSON field names are camelCase so snapshot files stay readable by older
clients. FileSize decodes numbers and numeric strings alike.
*/
package models
