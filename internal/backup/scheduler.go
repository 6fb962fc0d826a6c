// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package backup

import (
	"errors"
	"time"

	"github.com/tomtom215/notevault/internal/cron"
	"github.com/tomtom215/notevault/internal/metrics"
)

var errShutdown = errors.New("backup job is shut down")

// startLoop (re)starts the timer goroutine with a new schedule. Callers hold
// controlMu.
func (j *Job) startLoop(expr string, sched *cron.Schedule) error {
	j.stopLoop()

	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	if j.shutdown {
		return errShutdown
	}

	j.expr = expr
	j.schedule = sched
	j.running = true
	j.nextRun = sched.Next(j.now())
	j.stopCh = make(chan struct{})

	j.loopWg.Add(1)
	go j.runScheduler(sched, j.stopCh)

	metrics.SetBackupScheduleActive(true)
	return nil
}

// stopLoop stops the timer goroutine and waits for it, including a pass it
// may be running.
func (j *Job) stopLoop() {
	j.stateMu.Lock()
	if !j.running {
		j.stateMu.Unlock()
		return
	}
	j.running = false
	j.nextRun = time.Time{}
	close(j.stopCh)
	j.stateMu.Unlock()

	j.loopWg.Wait()
	metrics.SetBackupScheduleActive(false)
}

// runScheduler fires a pass at every schedule time. The next fire time is
// computed after the pass completes, so windows missed while a pass was
// running are skipped.
func (j *Job) runScheduler(sched *cron.Schedule, stop <-chan struct{}) {
	defer j.loopWg.Done()

	next := sched.Next(j.now())
	if next.IsZero() {
		j.logger.Warn().Msg("Backup schedule has no future fire time")
		<-stop
		return
	}
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-j.base.Done():
			return
		case <-timer.C:
			res, err := j.runPass(j.base, "tick")
			j.recordOutcome(j.base, res, err)

			next = sched.Next(j.now())
			j.stateMu.Lock()
			if j.schedule == sched {
				j.nextRun = next
			}
			j.stateMu.Unlock()
			if next.IsZero() {
				<-stop
				return
			}
			timer.Reset(time.Until(next))
		}
	}
}
