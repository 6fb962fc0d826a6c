// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package backup

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/notevault/internal/database"
	"github.com/tomtom215/notevault/internal/models"
	"github.com/tomtom215/notevault/internal/snapshot"
)

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	notes    []models.Note
	notesErr error
	tasks    map[string]models.ScheduledTask
	creates  int
}

func newMemStore(notes ...models.Note) *memStore {
	return &memStore{notes: notes, tasks: make(map[string]models.ScheduledTask)}
}

func (s *memStore) SnapshotNotes(context.Context) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notesErr != nil {
		return nil, s.notesErr
	}
	return append([]models.Note(nil), s.notes...), nil
}

func (s *memStore) GetTask(_ context.Context, name string) (*models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &t, nil
}

func (s *memStore) CreateTask(_ context.Context, t models.ScheduledTask) (*models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.Name]; ok {
		return nil, errors.New("duplicate task")
	}
	s.creates++
	s.tasks[t.Name] = t
	return &t, nil
}

func (s *memStore) UpdateTask(_ context.Context, name string, u models.TaskUpdate) (*models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return nil, database.ErrNotFound
	}
	if u.Schedule != nil {
		t.Schedule = *u.Schedule
	}
	if u.IsRunning != nil {
		t.IsRunning = *u.IsRunning
	}
	if u.IsSuccess != nil {
		t.IsSuccess = *u.IsSuccess
	}
	if u.LastRun != nil {
		t.LastRun = u.LastRun
	}
	if u.Output != nil {
		t.Output = u.Output
	}
	s.tasks[name] = t
	return &t, nil
}

type chanNotifier chan models.TaskStatus

func (c chanNotifier) BackupTaskChanged(status models.TaskStatus) {
	select {
	case c <- status:
	default:
	}
}

func newTestJob(t *testing.T, store Store, opts ...Option) (*Job, Config) {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		RootDir:    root,
		BackupDir:  filepath.Join(root, "backup"),
		UploadsDir: filepath.Join(root, "files"),
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.UploadsDir, "cat.png"), []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	job := NewJob(cfg, store, opts...)
	t.Cleanup(job.Shutdown)
	return job, job.Config()
}

func sampleNotes() []models.Note {
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return []models.Note{
		{ID: 1, Content: "first", Account: &models.Account{ID: 1, Name: "alice"}, CreatedAt: created, UpdatedAt: created},
		{ID: 2, Content: "second", Account: &models.Account{ID: 1, Name: "alice"}, CreatedAt: created, UpdatedAt: created,
			Attachments: []models.Attachment{{ID: 9, Name: "cat.png", Path: "/api/file/cat.png"}}},
	}
}

func readArchiveSnapshot(t *testing.T, archivePath string) *snapshot.Snapshot {
	t.Helper()
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name != "backup/"+snapshot.FileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		snap, err := snapshot.Deserialize(data)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		return snap
	}
	t.Fatalf("archive has no backup/%s, entries: %v", snapshot.FileName, names)
	return nil
}

func TestRunBackupPass(t *testing.T) {
	store := newMemStore(sampleNotes()...)
	job, cfg := newTestJob(t, store)

	res, err := job.RunBackupPass(context.Background())
	if err != nil {
		t.Fatalf("RunBackupPass: %v", err)
	}
	if res.FilePath != "/api/file/notevault_export.bko" {
		t.Errorf("FilePath = %q", res.FilePath)
	}
	if res.Notes != 2 {
		t.Errorf("Notes = %d, want 2", res.Notes)
	}

	snap := readArchiveSnapshot(t, cfg.ArchivePath())
	if len(snap.Notes) != 2 {
		t.Fatalf("archived snapshot has %d notes, want 2", len(snap.Notes))
	}
	if snap.Notes[1].Attachments[0].Name != "cat.png" {
		t.Errorf("attachment not preserved: %+v", snap.Notes[1].Attachments)
	}
	if snap.Version != AppVersion {
		t.Errorf("Version = %q, want %q", snap.Version, AppVersion)
	}

	// A second pass replaces the archive instead of packing the old one.
	if _, err := job.RunBackupPass(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	zr, err := zip.OpenReader(cfg.ArchivePath())
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == "files/"+cfg.ArchiveName {
			t.Error("archive contains itself")
		}
	}
}

func TestRunBackupPassError(t *testing.T) {
	store := newMemStore()
	store.notesErr = errors.New("boom")
	job, cfg := newTestJob(t, store)

	_, err := job.RunBackupPass(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "backup pass failed: failed to query notes: boom" {
		t.Errorf("err = %q", err)
	}
	if _, statErr := os.Stat(cfg.ArchivePath()); !os.IsNotExist(statErr) {
		t.Error("no archive should be written")
	}
}

func TestStartCreatesRow(t *testing.T) {
	store := newMemStore(sampleNotes()...)
	notifier := make(chanNotifier, 4)
	job, _ := newTestJob(t, store, WithNotifier(notifier))

	task, err := job.Start(context.Background(), "0 0 * * 0", true)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !task.IsSuccess || !task.IsRunning {
		t.Errorf("task = %+v, want success and running", task)
	}
	if task.Name != "Backup Database" || task.Schedule != "0 0 * * 0" {
		t.Errorf("task = %+v", task)
	}
	if task.LastRun == nil {
		t.Error("LastRun not set")
	}
	var out PassResult
	if err := json.Unmarshal(task.Output, &out); err != nil || out.FilePath != "/api/file/notevault_export.bko" {
		t.Errorf("output = %s (%v)", task.Output, err)
	}
	if store.creates != 1 {
		t.Errorf("creates = %d, want 1", store.creates)
	}
	if !job.IsActive() || job.NextRun().IsZero() {
		t.Error("timer should be running with a next fire time")
	}

	select {
	case st := <-notifier:
		if !st.Active || st.NextRun == nil {
			t.Errorf("notified status = %+v", st)
		}
	default:
		t.Error("expected a notification")
	}

	// Starting again updates the same row.
	if _, err := job.Start(context.Background(), "@daily", false); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if store.creates != 1 || len(store.tasks) != 1 {
		t.Errorf("creates = %d rows = %d, want 1/1", store.creates, len(store.tasks))
	}
	if got := store.tasks["Backup Database"].Schedule; got != "@daily" {
		t.Errorf("schedule = %q", got)
	}
}

func TestStartRecordsFailedPass(t *testing.T) {
	store := newMemStore()
	store.notesErr = errors.New("disk gone")
	job, _ := newTestJob(t, store)

	task, err := job.Start(context.Background(), "@hourly", true)
	if err != nil {
		t.Fatalf("Start should not return the pass error: %v", err)
	}
	if task.IsSuccess || !task.IsRunning {
		t.Errorf("task = %+v", task)
	}
	var out models.ErrorOutput
	if err := json.Unmarshal(task.Output, &out); err != nil {
		t.Fatal(err)
	}
	if out.Error != "backup pass failed: failed to query notes: disk gone" {
		t.Errorf("output error = %q", out.Error)
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	store := newMemStore()
	job, _ := newTestJob(t, store)

	_, err := job.Start(context.Background(), "every tuesday", true)
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
	if len(store.tasks) != 0 || job.IsActive() {
		t.Error("invalid schedule must not change anything")
	}
}

func TestStop(t *testing.T) {
	store := newMemStore()
	job, _ := newTestJob(t, store)

	if _, err := job.Stop(context.Background()); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Stop without row: err = %v", err)
	}

	if _, err := job.Start(context.Background(), "@weekly", false); err != nil {
		t.Fatal(err)
	}
	task, err := job.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if task.IsRunning || job.IsActive() {
		t.Error("expected stopped")
	}
	if !job.NextRun().IsZero() {
		t.Error("stopped job has no next run")
	}
}

func TestRescheduleRunsPass(t *testing.T) {
	store := newMemStore(sampleNotes()...)
	job, cfg := newTestJob(t, store)

	if _, err := job.Start(context.Background(), "@weekly", false); err != nil {
		t.Fatal(err)
	}
	task, err := job.Reschedule(context.Background(), "30 2 * * *")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if task.Schedule != "30 2 * * *" || !task.IsSuccess {
		t.Errorf("task = %+v", task)
	}
	if _, err := os.Stat(cfg.ArchivePath()); err != nil {
		t.Errorf("expected archive after reschedule: %v", err)
	}
}

func TestScheduledTickUpdatesRow(t *testing.T) {
	store := newMemStore(sampleNotes()...)
	notifier := make(chanNotifier, 16)
	job, _ := newTestJob(t, store, WithNotifier(notifier))

	if _, err := job.Start(context.Background(), "* * * * * *", false); err != nil {
		t.Fatal(err)
	}
	// Drain the Start notification.
	<-notifier

	select {
	case st := <-notifier:
		if !st.IsSuccess {
			t.Errorf("tick status = %+v", st)
		}
		if st.LastRun == nil {
			t.Error("tick should set lastRun")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no tick within 5s")
	}
}

func TestScheduledTickFailureKeepsLoop(t *testing.T) {
	store := newMemStore(sampleNotes()...)
	store.notesErr = errors.New("disk unavailable")
	notifier := make(chanNotifier, 16)
	job, _ := newTestJob(t, store, WithNotifier(notifier))

	started, err := job.Start(context.Background(), "* * * * * *", false)
	if err != nil {
		t.Fatal(err)
	}
	<-notifier
	startedAt := *started.LastRun

	waitTick := func() models.TaskStatus {
		t.Helper()
		select {
		case st := <-notifier:
			return st
		case <-time.After(5 * time.Second):
			t.Fatal("no tick within 5s")
		}
		return models.TaskStatus{}
	}

	// Two failed ticks in a row: the loop survives the first one.
	for i := 0; i < 2; i++ {
		st := waitTick()
		if st.IsSuccess {
			t.Fatalf("tick %d: expected failure, got %+v", i, st)
		}
		var out models.ErrorOutput
		if err := json.Unmarshal(st.Output, &out); err != nil || out.Error == "" {
			t.Fatalf("tick %d: output = %s, want {error}", i, st.Output)
		}
		if st.LastRun == nil || !st.LastRun.Equal(startedAt) {
			t.Errorf("tick %d: failed tick moved lastRun to %v", i, st.LastRun)
		}
		if !st.Active {
			t.Errorf("tick %d: timer should still be running", i)
		}
	}

	store.mu.Lock()
	store.notesErr = nil
	store.mu.Unlock()

	// A pass may already be in flight with the old error; wait for a success.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-notifier:
			if !st.IsSuccess {
				continue
			}
			if st.LastRun == nil || !st.LastRun.After(startedAt) {
				t.Errorf("successful tick lastRun = %v, want after %v", st.LastRun, startedAt)
			}
			return
		case <-deadline:
			t.Fatal("no successful tick after the store recovered")
		}
	}
}

func TestConcurrentStartKeepsOneLoop(t *testing.T) {
	store := newMemStore(sampleNotes()...)
	job, _ := newTestJob(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			if _, err := job.Start(ctx, "@daily", false); err != nil {
				t.Errorf("Start: %v", err)
			}
		}()
	}
	close(gate)
	wg.Wait()

	if store.creates != 1 {
		t.Errorf("task rows created = %d, want 1", store.creates)
	}

	done := make(chan error, 1)
	go func() {
		_, err := job.Stop(ctx)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return; a scheduler loop was left without its stop channel")
	}
	if job.IsActive() {
		t.Error("timer should be stopped")
	}
}

func TestResume(t *testing.T) {
	store := newMemStore()
	job, _ := newTestJob(t, store)

	if err := job.Resume(&models.ScheduledTask{Schedule: "bad"}); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("err = %v", err)
	}
	if err := job.Resume(&models.ScheduledTask{Schedule: "@daily"}); err != nil {
		t.Fatal(err)
	}
	if !job.IsActive() || job.Schedule() != "@daily" {
		t.Error("expected resumed schedule")
	}
	if len(store.tasks) != 0 {
		t.Error("Resume must not write the row")
	}
}

func TestShutdownPreventsRestart(t *testing.T) {
	job, _ := newTestJob(t, newMemStore())
	job.Shutdown()
	if _, err := job.Start(context.Background(), "@daily", false); err == nil {
		t.Error("Start after Shutdown should fail")
	}
}

func TestShutdownStopsStartedLoop(t *testing.T) {
	store := newMemStore(sampleNotes()...)
	notifier := make(chanNotifier, 16)
	job, _ := newTestJob(t, store, WithNotifier(notifier))

	if _, err := job.Start(context.Background(), "* * * * * *", false); err != nil {
		t.Fatal(err)
	}
	<-notifier

	job.Shutdown()
	if job.IsActive() {
		t.Fatal("timer should stop on Shutdown")
	}
	task, err := store.GetTask(context.Background(), job.Config().TaskName)
	if err != nil {
		t.Fatal(err)
	}
	if !task.IsRunning {
		t.Error("Shutdown must leave the persisted isRunning flag alone")
	}

	// A tick that finished before Shutdown returned may still be buffered.
	for drained := false; !drained; {
		select {
		case <-notifier:
		default:
			drained = true
		}
	}
	select {
	case st := <-notifier:
		t.Errorf("tick after Shutdown: %+v", st)
	case <-time.After(1500 * time.Millisecond):
	}
}
