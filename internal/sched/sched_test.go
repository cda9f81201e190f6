package sched_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-lab/go/testingx"
	"github.com/netgauge/netgauge/internal/sched"
	"github.com/netgauge/netgauge/internal/sim"
	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/netgauge/netgauge/pkg/results"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "descriptor", schedule: "@every 6h"},
		{name: "cron expression", schedule: "*/5 * * * *"},
		{name: "garbage", schedule: "banana", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sched.New(context.Background(), tt.schedule,
				func(context.Context) error { return nil })
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error: %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_Runs(t *testing.T) {
	var runs atomic.Int32
	s, err := sched.New(context.Background(), "@every 1s",
		func(context.Context) error {
			runs.Add(1)
			return nil
		})
	testingx.Must(t, err, "cannot create scheduler")

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("scheduled job did not run")
		}
		time.Sleep(50 * time.Millisecond)
	}
	if s.Next().IsZero() {
		t.Errorf("Next() returned the zero time while running")
	}
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	baseline := results.Baseline{
		ExpectedDownload: 100,
		ExpectedUpload:   50,
		ExpectedPing:     20,
	}
	// Each run takes three 600ms phases, so every other 1s tick fires
	// while the previous run is still in progress.
	runner := gauge.New(gauge.Config{
		PhaseDuration: 600 * time.Millisecond,
		Baseline:      baseline,
		Source:        sim.New(baseline, 0, 42),
	})

	var runs, skips atomic.Int32
	s, err := sched.New(context.Background(), "@every 1s",
		func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			switch {
			case errors.Is(err, gauge.ErrAlreadyRunning):
				skips.Add(1)
			case err == nil:
				runs.Add(1)
			}
			return err
		})
	testingx.Must(t, err, "cannot create scheduler")

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for runs.Load() < 1 || skips.Load() < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("runs: %d, skips: %d", runs.Load(), skips.Load())
		}
		time.Sleep(50 * time.Millisecond)
	}
}
