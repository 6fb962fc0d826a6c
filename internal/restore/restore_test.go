// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package restore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/notevault/internal/archive"
	"github.com/tomtom215/notevault/internal/config"
	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/models"
	"github.com/tomtom215/notevault/internal/snapshot"
)

// fakeStore records writes in memory. Attachments named in failAttachments
// fail to create; notes whose content is in failNotes fail to create.
type fakeStore struct {
	mu              sync.Mutex
	nextID          int64
	notes           map[int64]*models.Note
	accounts        map[string]*models.Account
	attachments     []models.Attachment
	lookups         []string
	failNotes       map[string]bool
	failAttachments map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notes:           make(map[int64]*models.Note),
		accounts:        make(map[string]*models.Account),
		failNotes:       make(map[string]bool),
		failAttachments: make(map[string]bool),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) CreateNote(_ context.Context, n models.NewNote) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNotes[n.Content] {
		return nil, errors.New("insert failed")
	}
	acct := n.AccountID
	note := &models.Note{ID: s.id(), Content: n.Content, AccountID: &acct}
	s.notes[note.ID] = note
	return note, nil
}

func (s *fakeStore) UpdateNoteOwnership(_ context.Context, noteID, accountID int64, createdAt, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[noteID]
	if !ok {
		return database.ErrNotFound
	}
	n.AccountID = &accountID
	if !createdAt.IsZero() {
		n.CreatedAt = createdAt
	}
	if !updatedAt.IsZero() {
		n.UpdatedAt = updatedAt
	}
	return nil
}

func (s *fakeStore) FindAccountByName(_ context.Context, name string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[name]; ok {
		return a, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) CreateAccount(_ context.Context, a models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.accounts[a.Name] = &a
	return &a, nil
}

func (s *fakeStore) FindAttachmentByName(_ context.Context, name string) (*models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, name)
	return nil, database.ErrNotFound
}

func (s *fakeStore) CreateAttachment(_ context.Context, a models.Attachment) (*models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAttachments[a.Name] {
		return nil, errors.New("constraint violation")
	}
	a.ID = s.id()
	s.attachments = append(s.attachments, a)
	return &a, nil
}

var created = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func snapNote(id int64, content, account string, attachments ...string) models.Note {
	n := models.Note{
		ID:        id,
		Content:   content,
		Account:   &models.Account{Name: account, Password: "hash-" + account},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}
	for _, name := range attachments {
		n.Attachments = append(n.Attachments, models.Attachment{ID: 100 + id, Name: name, Path: "/api/file/" + name})
	}
	return n
}

// buildArchive packs a root containing backup/bak.json and returns the
// archive path.
func buildArchive(t *testing.T, notes []models.Note) string {
	t.Helper()
	src := t.TempDir()
	if err := snapshot.WriteFile(filepath.Join(src, "backup", snapshot.FileName), notes, "test", created); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "notevault_export.bko")
	if _, err := archive.Pack(context.Background(), src, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func newTestPipeline(t *testing.T, store Store, legacy bool) *Pipeline {
	t.Helper()
	root := t.TempDir()
	return NewPipeline(Config{
		RootDir:             root,
		BackupDir:           filepath.Join(root, "backup"),
		LegacyProgressTotal: legacy,
		PerNoteTransaction:  true,
	}, store)
}

func collect(t *testing.T, p *Pipeline, req Request) []Event {
	t.Helper()
	var events []Event
	err := p.Run(context.Background(), req, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return events
}

func TestRunEventAccounting(t *testing.T) {
	store := newFakeStore()
	store.failAttachments["broken.pdf"] = true
	store.failNotes["doomed"] = true

	notes := []models.Note{
		snapNote(1, "a note that is definitely longer than thirty characters", "alice", "cat.png", "broken.pdf"),
		snapNote(2, "doomed", "bob", "never.txt"),
		snapNote(3, "short", "alice"),
	}
	p := newTestPipeline(t, store, false)
	events := collect(t, p, Request{ArchivePath: buildArchive(t, notes), AccountID: 7})

	// Note 2 fails before its attachments, so its attachment is neither
	// emitted nor counted.
	want := []struct {
		typ     EventType
		content string
		current int
	}{
		{EventSuccess, "a note that is definitely long", 1},
		{EventSuccess, "cat.png", 2},
		{EventError, "broken.pdf", 3},
		{EventError, "doomed", 4},
		{EventSuccess, "short", 5},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	total := 6
	prev := 0
	for i, w := range want {
		ev := events[i]
		if ev.Type != w.typ || ev.Content != w.content || ev.Progress.Current != w.current {
			t.Errorf("event %d = %+v, want %+v", i, ev, w)
		}
		if ev.Progress.Total != total {
			t.Errorf("event %d total = %d, want %d", i, ev.Progress.Total, total)
		}
		if ev.Progress.Current < prev || ev.Progress.Current > ev.Progress.Total {
			t.Errorf("event %d current %d breaks monotonic bound (prev %d)", i, ev.Progress.Current, prev)
		}
		prev = ev.Progress.Current
		if ev.Type == EventError && ev.Error == "" {
			t.Errorf("event %d: error event without message", i)
		}
	}

	if len(store.lookups) != 2 {
		t.Errorf("attachment lookups = %v, want 2", store.lookups)
	}
	if len(store.attachments) != 1 || store.attachments[0].ID == 101 {
		t.Errorf("attachments = %+v, want one fresh row", store.attachments)
	}
	if *store.attachments[0].NoteID != 1 {
		t.Errorf("attachment linked to note %d, want 1", *store.attachments[0].NoteID)
	}
}

func TestRunLegacyTotal(t *testing.T) {
	notes := []models.Note{snapNote(1, "one", "alice", "x.png"), snapNote(2, "two", "alice")}
	p := newTestPipeline(t, newFakeStore(), true)
	events := collect(t, p, Request{ArchivePath: buildArchive(t, notes), AccountID: 1})

	if len(events) != 3 {
		t.Fatalf("got %d events", len(events))
	}
	for _, ev := range events {
		if ev.Progress.Total != 2 {
			t.Errorf("legacy total = %d, want 2", ev.Progress.Total)
		}
	}
	if last := events[len(events)-1]; last.Progress.Current != 3 {
		t.Errorf("last current = %d, want 3", last.Progress.Current)
	}
}

func TestRunCreatesAccountOnce(t *testing.T) {
	store := newFakeStore()
	store.accounts["alice"] = &models.Account{ID: 500, Name: "alice"}

	notes := []models.Note{
		snapNote(1, "one", "carol"),
		snapNote(2, "two", "carol"),
		snapNote(3, "three", "alice"),
	}
	p := newTestPipeline(t, store, false)
	collect(t, p, Request{ArchivePath: buildArchive(t, notes), AccountID: 9})

	if len(store.accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(store.accounts))
	}
	carol := store.accounts["carol"]
	if carol.Role != models.RoleUser || carol.Password != "hash-carol" {
		t.Errorf("carol = %+v", carol)
	}
	for _, n := range store.notes {
		want := carol.ID
		if n.Content == "three" {
			want = 500
		}
		if *n.AccountID != want {
			t.Errorf("note %q owned by %d, want %d", n.Content, *n.AccountID, want)
		}
		if !n.CreatedAt.Equal(created) || !n.UpdatedAt.Equal(created.Add(time.Hour)) {
			t.Errorf("note %q timestamps not restored", n.Content)
		}
	}
}

func TestRunBadArchive(t *testing.T) {
	p := newTestPipeline(t, newFakeStore(), false)

	bogus := filepath.Join(t.TempDir(), "bogus.bko")
	if err := os.WriteFile(bogus, []byte("not a zip"), 0o600); err != nil {
		t.Fatal(err)
	}

	for name, path := range map[string]string{
		"missing": filepath.Join(t.TempDir(), "nope.bko"),
		"corrupt": bogus,
	} {
		t.Run(name, func(t *testing.T) {
			events := collect(t, p, Request{ArchivePath: path, AccountID: 1})
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.Type != EventError || ev.Progress != (Progress{}) || ev.Content == "" {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}

func TestRunSnapshotWithoutNotes(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "backup"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "backup", snapshot.FileName), []byte(`{"version":"1"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "a.bko")
	if _, err := archive.Pack(context.Background(), src, out); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, newFakeStore(), false)
	events := collect(t, p, Request{ArchivePath: out, AccountID: 1})
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %+v", events)
	}
	if !strings.Contains(events[0].Error, "invalid snapshot") {
		t.Errorf("error = %q", events[0].Error)
	}
}

func TestRunSinkErrorStops(t *testing.T) {
	notes := []models.Note{snapNote(1, "one", "a"), snapNote(2, "two", "a")}
	p := newTestPipeline(t, newFakeStore(), false)
	stop := errors.New("client gone")

	calls := 0
	err := p.Run(context.Background(), Request{ArchivePath: buildArchive(t, notes), AccountID: 1}, func(Event) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want sink error", err)
	}
	if calls != 1 {
		t.Errorf("sink called %d times, want 1", calls)
	}
}

func TestStream(t *testing.T) {
	notes := []models.Note{snapNote(1, "one", "a", "f.txt"), snapNote(2, "two", "a")}
	p := newTestPipeline(t, newFakeStore(), false)

	var got []Event
	for ev := range p.Stream(context.Background(), Request{ArchivePath: buildArchive(t, notes), AccountID: 1}) {
		got = append(got, ev)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for i, ev := range got {
		if ev.Progress.Current != i+1 {
			t.Errorf("event %d current = %d", i, ev.Progress.Current)
		}
	}
}

func TestStreamCancel(t *testing.T) {
	var notes []models.Note
	for i := int64(1); i <= 50; i++ {
		notes = append(notes, snapNote(i, "n", "a"))
	}
	p := newTestPipeline(t, newFakeStore(), false)
	ctx, cancel := context.WithCancel(context.Background())

	ch := p.Stream(ctx, Request{ArchivePath: buildArchive(t, notes), AccountID: 1})
	<-ch
	cancel()

	n := 1
	for range ch {
		n++
	}
	if n >= 50 {
		t.Errorf("received %d events after cancel, expected the run to stop early", n)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 4); got != "héll" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 30); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestRunAgainstDuckDB(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	caller, err := db.CreateAccount(ctx, models.Account{Name: "admin", Password: "x"})
	if err != nil {
		t.Fatal(err)
	}

	notes := []models.Note{snapNote(1, "restored", "dave", "pic.jpg")}
	p := newTestPipeline(t, db, false)
	events := collect(t, p, Request{ArchivePath: buildArchive(t, notes), AccountID: caller.ID})
	for _, ev := range events {
		if ev.Type != EventSuccess {
			t.Errorf("event = %+v", ev)
		}
	}

	dave, err := db.FindAccountByName(ctx, "dave")
	if err != nil {
		t.Fatalf("dave not created: %v", err)
	}
	if dave.Role != models.RoleUser {
		t.Errorf("role = %q", dave.Role)
	}

	snap, err := db.SnapshotNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 || snap[0].Account == nil || snap[0].Account.Name != "dave" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap[0].Attachments) != 1 || snap[0].Attachments[0].Name != "pic.jpg" {
		t.Errorf("attachments = %+v", snap[0].Attachments)
	}
	if !snap[0].CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want %v", snap[0].CreatedAt, created)
	}
}

func TestRunKeepsCreationTimesWhenSnapshotHasNone(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	caller, err := db.CreateAccount(ctx, models.Account{Name: "admin", Password: "x"})
	if err != nil {
		t.Fatal(err)
	}

	undated := snapNote(1, "undated", "erin")
	undated.CreatedAt, undated.UpdatedAt = time.Time{}, time.Time{}

	before := time.Now().Add(-time.Minute)
	p := newTestPipeline(t, db, false)
	for _, ev := range collect(t, p, Request{ArchivePath: buildArchive(t, []models.Note{undated}), AccountID: caller.ID}) {
		if ev.Type != EventSuccess {
			t.Errorf("event = %+v", ev)
		}
	}

	snap, err := db.SnapshotNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap[0].CreatedAt.Before(before) || snap[0].UpdatedAt.Before(before) {
		t.Errorf("timestamps = %v / %v, want the creation time kept", snap[0].CreatedAt, snap[0].UpdatedAt)
	}
	if snap[0].Account == nil || snap[0].Account.Name != "erin" {
		t.Errorf("owner = %+v, want erin", snap[0].Account)
	}
}
