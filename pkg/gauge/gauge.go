// Package gauge implements the phased measurement controller. A
// measurement runs the ping, download and upload phases in order,
// polls a Source for raw samples at a fixed cadence, emits smoothed
// live updates at the display cadence, and reduces the raw buffers
// into a single Result when the last phase completes.
package gauge

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/grade"
	"github.com/netgauge/netgauge/pkg/results"
	"github.com/netgauge/netgauge/pkg/stats"
)

// ErrAlreadyRunning is returned by Run when a measurement is already
// in progress on this Runner. The running measurement is unaffected.
var ErrAlreadyRunning = errors.New("a measurement is already running")

// phases are the measurement phases in execution order.
var phases = []spec.Phase{spec.PhasePing, spec.PhaseDownload, spec.PhaseUpload}

// Source produces raw samples for a measurement phase. Sample blocks
// until a sample is available or ctx is done. Latency samples are in
// milliseconds, throughput samples in Mbps.
type Source interface {
	Sample(ctx context.Context, phase spec.Phase) (float64, error)
}

// Config contains the configuration for a Runner.
type Config struct {
	// Profile selects the per-phase duration.
	Profile spec.Profile
	// PhaseDuration optionally overrides the profile's per-phase
	// duration. Zero means the profile decides.
	PhaseDuration time.Duration
	// Baseline holds the expected values measurements are graded
	// against.
	Baseline results.Baseline
	// Source produces the raw samples.
	Source Source
	// Emitter receives progress events. A nil Emitter discards them.
	Emitter Emitter

	// NetworkType, Location and ServerID are optional tags copied onto
	// the final Result.
	NetworkType string
	Location    string
	ServerID    string
}

// Runner is a reusable phased measurement controller. Only one
// measurement can run at a time on a given Runner.
type Runner struct {
	config  Config
	running atomic.Bool
}

// Outcome is a completed measurement: the assembled Result plus the
// raw per-phase buffers it was computed from.
type Outcome struct {
	Result results.Result

	PingSamples     []float64
	DownloadSamples []float64
	UploadSamples   []float64

	// Profile and PhaseDuration record how the measurement ran.
	Profile       spec.Profile
	PhaseDuration time.Duration
}

// Archive converts this Outcome to an ArchivalRecord.
func (o *Outcome) Archive() *results.ArchivalRecord {
	return results.NewArchivalRecord(o.Result, string(o.Profile), o.PhaseDuration,
		o.PingSamples, o.DownloadSamples, o.UploadSamples)
}

// New returns a new Runner with the provided config. It panics if
// config.Source is nil.
func New(config Config) *Runner {
	if config.Source == nil {
		panic("source must be non-nil")
	}
	if config.Emitter == nil {
		config.Emitter = quiet{}
	}
	return &Runner{config: config}
}

// phaseDuration returns the configured per-phase duration.
func (r *Runner) phaseDuration() time.Duration {
	if r.config.PhaseDuration > 0 {
		return r.config.PhaseDuration
	}
	return r.config.Profile.Duration()
}

// Run executes one full measurement and returns its Outcome. It
// returns ErrAlreadyRunning when a measurement is already in progress
// on this Runner. Cancelling the context discards all buffers and
// returns the context's error without emitting a result.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	duration := r.phaseDuration()
	buffers := make([][]float64, len(phases))

	for i, phase := range phases {
		r.config.Emitter.OnPhaseStart(phase)
		samples, err := r.runPhase(ctx, phase, i, start, duration)
		if err != nil {
			return nil, err
		}
		buffers[i] = samples
	}

	outcome := &Outcome{
		Result:          r.assemble(buffers[0], buffers[1], buffers[2]),
		PingSamples:     buffers[0],
		DownloadSamples: buffers[1],
		UploadSamples:   buffers[2],
		Profile:         r.config.Profile,
		PhaseDuration:   duration,
	}
	r.config.Emitter.OnComplete(outcome.Result)
	return outcome, nil
}

// runPhase polls the Source until the phase's wall-clock deadline. The
// deadline alone ends the phase: a Source that overruns the sampling
// cadence shortens the buffer, never the phase.
func (r *Runner) runPhase(ctx context.Context, phase spec.Phase, index int,
	start time.Time, duration time.Duration) ([]float64, error) {
	phaseStart := time.Now()
	phaseCtx, cancel := context.WithDeadline(ctx, phaseStart.Add(duration))
	defer cancel()

	samples := make([]float64, 0, int(duration/spec.SampleInterval)+1)

	sampleTicker := time.NewTicker(spec.SampleInterval)
	defer sampleTicker.Stop()
	displayTicker := time.NewTicker(spec.DisplayInterval)
	defer displayTicker.Stop()

	for {
		select {
		case <-phaseCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return samples, nil
		case <-sampleTicker.C:
			v, err := r.config.Source.Sample(phaseCtx, phase)
			if err != nil {
				if phaseCtx.Err() != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					return samples, nil
				}
				r.config.Emitter.OnError(err)
				return nil, err
			}
			samples = append(samples, v)
		case <-displayTicker.C:
			r.config.Emitter.OnSnapshot(Snapshot{
				Phase:       phase,
				Progress:    progress(index, time.Since(phaseStart), duration),
				Value:       smooth(samples),
				ElapsedTime: time.Since(start).Microseconds(),
			})
		}
	}
}

// progress maps a phase index and the elapsed time within the phase to
// an overall 0-100 figure. Each phase covers an equal third.
func progress(index int, phaseElapsed, duration time.Duration) float64 {
	frac := float64(phaseElapsed) / float64(duration)
	if frac > 1 {
		frac = 1
	}
	return (float64(index) + frac) / float64(len(phases)) * 100
}

// smooth returns the mean of the most recent SmoothingWindow raw
// samples, or of all of them when fewer exist.
func smooth(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	n := spec.SmoothingWindow
	if len(samples) < n {
		n = len(samples)
	}
	var sum float64
	for _, v := range samples[len(samples)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// assemble reduces the raw buffers into the final Result. The headline
// values are the phase medians, not the means.
func (r *Runner) assemble(ping, download, upload []float64) results.Result {
	pingStats := stats.Compute(ping)
	downloadStats := stats.Compute(download)
	uploadStats := stats.Compute(upload)

	downloadMbps := roundTo1(downloadStats.Median)
	uploadMbps := roundTo1(uploadStats.Median)
	pingMs := math.Round(pingStats.Median)

	overall := grade.Combine(
		grade.Throughput(downloadMbps, r.config.Baseline.ExpectedDownload),
		grade.Throughput(uploadMbps, r.config.Baseline.ExpectedUpload),
		grade.Latency(pingMs, r.config.Baseline.ExpectedPing),
	)

	trend := (stats.TrendSlope(download) + stats.TrendSlope(upload) -
		stats.TrendSlope(ping)) / 3

	return results.Result{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Download:    downloadMbps,
		Upload:      uploadMbps,
		Ping:        pingMs,
		NetworkType: r.config.NetworkType,
		Location:    r.config.Location,
		ServerID:    r.config.ServerID,
		Stats: &results.Stats{
			Download:       downloadStats,
			Upload:         uploadStats,
			Ping:           pingStats,
			Jitter:         stats.Jitter(ping),
			StabilityScore: stats.StabilityScore(downloadStats),
			Grade:          overall,
			TrendSlope:     trend,
		},
	}
}

// roundTo1 rounds to one decimal place.
func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
