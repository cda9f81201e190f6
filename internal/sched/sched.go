// Package sched triggers measurements on a schedule in daemon mode.
package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/robfig/cron/v3"
)

// Job is one scheduled measurement run.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron schedule. A tick that fires while the
// job is still running is expected to fail with ErrAlreadyRunning and
// is skipped; ticks are never queued.
type Scheduler struct {
	cron *cron.Cron
	job  Job
	ctx  context.Context
}

// New returns a Scheduler running job according to schedule. The
// schedule is a standard 5-field cron expression or a descriptor such
// as "@hourly" or "@every 6h".
func New(ctx context.Context, schedule string, job Job) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{
		cron: c,
		job:  job,
		ctx:  ctx,
	}
	_, err := c.AddFunc(schedule, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// tick runs one scheduled measurement.
func (s *Scheduler) tick() {
	err := s.job(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, gauge.ErrAlreadyRunning):
		log.Debug("previous run still in progress, skipping tick")
	default:
		log.Error("scheduled run failed", "error", err)
	}
}

// Start begins triggering the job.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops triggering the job and waits for a running tick to
// return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the time of the next scheduled run, or the zero time if
// the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
