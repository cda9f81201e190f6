package gauge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/results"
)

// constSource returns a fixed value per phase.
type constSource struct {
	ping, download, upload float64
}

func (s *constSource) Sample(ctx context.Context, phase spec.Phase) (float64, error) {
	switch phase {
	case spec.PhasePing:
		return s.ping, nil
	case spec.PhaseDownload:
		return s.download, nil
	default:
		return s.upload, nil
	}
}

// errSource fails on the first sample.
type errSource struct{}

func (errSource) Sample(ctx context.Context, phase spec.Phase) (float64, error) {
	return 0, errors.New("sample failed")
}

// recordingEmitter captures all events for later assertions.
type recordingEmitter struct {
	mu        sync.Mutex
	phases    []spec.Phase
	snapshots []gauge.Snapshot
	completed []results.Result
	errs      []error
}

func (e *recordingEmitter) OnPhaseStart(p spec.Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phases = append(e.phases, p)
}

func (e *recordingEmitter) OnSnapshot(s gauge.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots = append(e.snapshots, s)
}

func (e *recordingEmitter) OnError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *recordingEmitter) OnComplete(r results.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, r)
}

func testBaseline() results.Baseline {
	return results.Baseline{
		ExpectedDownload: 100,
		ExpectedUpload:   50,
		ExpectedPing:     20,
	}
}

func TestRunner_Run(t *testing.T) {
	emitter := &recordingEmitter{}
	r := gauge.New(gauge.Config{
		Profile:       spec.ProfileQuick,
		PhaseDuration: 300 * time.Millisecond,
		Baseline:      testBaseline(),
		Source:        &constSource{ping: 10, download: 120, upload: 60},
		Emitter:       emitter,
		NetworkType:   "ethernet",
	})

	outcome, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome == nil {
		t.Fatal("run returned nil outcome")
	}

	res := outcome.Result
	if res.ID == "" {
		t.Errorf("result has no ID")
	}
	if res.Download != 120 || res.Upload != 60 || res.Ping != 10 {
		t.Errorf("unexpected result values %v/%v/%v", res.Download, res.Upload, res.Ping)
	}
	if res.NetworkType != "ethernet" {
		t.Errorf("unexpected network type %q", res.NetworkType)
	}
	if res.Stats == nil {
		t.Fatal("completed run must include stats")
	}
	if res.Stats.Grade != "A+" {
		t.Errorf("unexpected grade %s", res.Stats.Grade)
	}
	if res.Stats.Jitter != 0 {
		t.Errorf("unexpected jitter %v for a constant source", res.Stats.Jitter)
	}
	if res.Stats.StabilityScore != 100 {
		t.Errorf("unexpected stability %d for a constant source", res.Stats.StabilityScore)
	}
	if res.Stats.TrendSlope != 0 {
		t.Errorf("unexpected trend %v for a constant source", res.Stats.TrendSlope)
	}

	if len(outcome.PingSamples) == 0 || len(outcome.DownloadSamples) == 0 ||
		len(outcome.UploadSamples) == 0 {
		t.Errorf("outcome is missing raw buffers")
	}

	wantPhases := []spec.Phase{spec.PhasePing, spec.PhaseDownload, spec.PhaseUpload}
	if len(emitter.phases) != len(wantPhases) {
		t.Fatalf("unexpected phase starts %v", emitter.phases)
	}
	for i, p := range wantPhases {
		if emitter.phases[i] != p {
			t.Errorf("unexpected phase order %v", emitter.phases)
		}
	}
	if len(emitter.completed) != 1 {
		t.Errorf("expected exactly one completion, got %d", len(emitter.completed))
	}
}

func TestRunner_Run_Snapshots(t *testing.T) {
	emitter := &recordingEmitter{}
	r := gauge.New(gauge.Config{
		PhaseDuration: 700 * time.Millisecond,
		Baseline:      testBaseline(),
		Source:        &constSource{ping: 10, download: 120, upload: 60},
		Emitter:       emitter,
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(emitter.snapshots) == 0 {
		t.Fatal("no snapshots emitted")
	}
	last := -1.0
	for _, s := range emitter.snapshots {
		if s.Progress < 0 || s.Progress > 100 {
			t.Errorf("progress %v out of range", s.Progress)
		}
		if s.Progress < last {
			t.Errorf("progress went backwards: %v after %v", s.Progress, last)
		}
		last = s.Progress

		// A constant source must smooth to the constant itself.
		var want float64
		switch s.Phase {
		case spec.PhasePing:
			want = 10
		case spec.PhaseDownload:
			want = 120
		case spec.PhaseUpload:
			want = 60
		default:
			t.Errorf("unexpected snapshot phase %s", s.Phase)
		}
		if s.Value != want {
			t.Errorf("unexpected %s snapshot value %v, want %v", s.Phase, s.Value, want)
		}
	}
}

func TestRunner_Run_Cancelled(t *testing.T) {
	emitter := &recordingEmitter{}
	r := gauge.New(gauge.Config{
		PhaseDuration: 500 * time.Millisecond,
		Baseline:      testBaseline(),
		Source:        &constSource{ping: 10, download: 120, upload: 60},
		Emitter:       emitter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(150*time.Millisecond, cancel)

	outcome, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error %v, want context.Canceled", err)
	}
	if outcome != nil {
		t.Errorf("cancelled run returned an outcome")
	}
	if len(emitter.completed) != 0 {
		t.Errorf("cancelled run emitted a completion")
	}
}

func TestRunner_Run_AlreadyRunning(t *testing.T) {
	r := gauge.New(gauge.Config{
		PhaseDuration: 400 * time.Millisecond,
		Baseline:      testBaseline(),
		Source:        &constSource{ping: 10, download: 120, upload: 60},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := r.Run(context.Background()); err != nil {
			t.Errorf("first run failed: %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	if _, err := r.Run(context.Background()); !errors.Is(err, gauge.ErrAlreadyRunning) {
		t.Errorf("unexpected error %v, want ErrAlreadyRunning", err)
	}
	wg.Wait()

	// The Runner is reusable once the first measurement completes.
	r2 := gauge.New(gauge.Config{
		PhaseDuration: 200 * time.Millisecond,
		Baseline:      testBaseline(),
		Source:        &constSource{ping: 10, download: 120, upload: 60},
	})
	if _, err := r2.Run(context.Background()); err != nil {
		t.Errorf("fresh run failed: %v", err)
	}
}

func TestRunner_Run_SourceError(t *testing.T) {
	emitter := &recordingEmitter{}
	r := gauge.New(gauge.Config{
		PhaseDuration: 300 * time.Millisecond,
		Baseline:      testBaseline(),
		Source:        errSource{},
		Emitter:       emitter,
	})

	outcome, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failing source")
	}
	if outcome != nil {
		t.Errorf("failed run returned an outcome")
	}
	if len(emitter.errs) == 0 {
		t.Errorf("source error was not emitted")
	}
}

func TestOutcome_Archive(t *testing.T) {
	r := gauge.New(gauge.Config{
		Profile:       spec.ProfileQuick,
		PhaseDuration: 200 * time.Millisecond,
		Baseline:      testBaseline(),
		Source:        &constSource{ping: 10, download: 120, upload: 60},
	})
	outcome, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	record := outcome.Archive()
	if record.Result.ID != outcome.Result.ID {
		t.Errorf("archival record does not wrap the result")
	}
	if record.Profile != string(spec.ProfileQuick) {
		t.Errorf("unexpected profile %q", record.Profile)
	}
	if len(record.PingSamples) != len(outcome.PingSamples) {
		t.Errorf("archival record lost raw samples")
	}
}
