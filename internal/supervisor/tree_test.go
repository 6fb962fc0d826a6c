// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/notevault/internal/logging"
)

// countingService fails its first failures runs, then blocks until stopped.
type countingService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func TestNewSupervisorTreeDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(logging.NewSlogLogger("supervisor"), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree: %v", err)
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}
}

func TestSupervisorTreeStartsAllLayers(t *testing.T) {
	tree, _ := NewSupervisorTree(logging.NewSlogLogger("supervisor"), TreeConfig{ShutdownTimeout: time.Second})

	job := &countingService{name: "job"}
	hub := &countingService{name: "hub"}
	api := &countingService{name: "api"}
	tree.AddJobService(job)
	tree.AddMessagingService(hub)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for (job.starts.Load() == 0 || hub.starts.Load() == 0 || api.starts.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}

	for _, s := range []*countingService{job, hub, api} {
		if s.starts.Load() != 1 {
			t.Errorf("%s started %d times, want 1", s.name, s.starts.Load())
		}
	}
}

func TestSupervisorTreeRestartsFailedService(t *testing.T) {
	tree, _ := NewSupervisorTree(logging.NewSlogLogger("supervisor"), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := &countingService{name: "flaky", failures: 2}
	stable := &countingService{name: "stable"}
	tree.AddJobService(flaky)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for flaky.starts.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if flaky.starts.Load() < 3 {
		t.Errorf("flaky started %d times, want >= 3", flaky.starts.Load())
	}
	if stable.starts.Load() != 1 {
		t.Errorf("stable restarted: %d starts", stable.starts.Load())
	}
}
