package gauge

import (
	"fmt"

	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/results"
)

// Snapshot is one smoothed live update emitted while a measurement is
// running. It is also the wire format streamed by the live endpoint.
type Snapshot struct {
	// Phase is the phase the measurement is currently in.
	Phase spec.Phase `json:"phase"`
	// Progress is the overall progress across all phases, 0-100.
	Progress float64 `json:"progress"`
	// Value is the smoothed live value for the current phase: latency
	// in milliseconds during the ping phase, throughput in Mbps
	// otherwise.
	Value float64 `json:"value"`
	// ElapsedTime is the time since the measurement started
	// (microseconds).
	ElapsedTime int64 `json:"elapsedTime"`
}

// Emitter is an interface for emitting measurement progress.
type Emitter interface {
	// OnPhaseStart is called when a measurement phase begins.
	OnPhaseStart(phase spec.Phase)
	// OnSnapshot is called at the display cadence with a smoothed live
	// update.
	OnSnapshot(s Snapshot)
	// OnError is called on errors.
	OnError(err error)
	// OnComplete is called once with the final assembled result.
	OnComplete(r results.Result)
}

// HumanReadable prints human-readable output to stdout.
type HumanReadable struct{}

// OnPhaseStart is called when a phase begins and prints its name.
func (HumanReadable) OnPhaseStart(phase spec.Phase) {
	fmt.Printf("Starting %s phase\n", phase)
}

// OnSnapshot prints the smoothed live value for the current phase.
func (HumanReadable) OnSnapshot(s Snapshot) {
	switch s.Phase {
	case spec.PhasePing:
		fmt.Printf("\r%s: %.0f ms (%.0f%%)   ", s.Phase, s.Value, s.Progress)
	default:
		fmt.Printf("\r%s: %.2f Mb/s (%.0f%%)   ", s.Phase, s.Value, s.Progress)
	}
}

// OnError is called on errors.
func (HumanReadable) OnError(err error) {
	fmt.Println(err)
}

// OnComplete prints the final summary.
func (HumanReadable) OnComplete(r results.Result) {
	fmt.Println()
	fmt.Printf("Test results:\n")
	fmt.Printf("  download: %.1f Mb/s, upload: %.1f Mb/s, ping: %.0f ms\n",
		r.Download, r.Upload, r.Ping)
	if r.Stats != nil {
		fmt.Printf("  grade: %s, jitter: %.2f ms, stability: %d/100\n",
			r.Stats.Grade, r.Stats.Jitter, r.Stats.StabilityScore)
	}
}

// Checks that HumanReadable implements Emitter.
var _ Emitter = &HumanReadable{}

// quiet discards all events. It is used when no Emitter is configured.
type quiet struct{}

func (quiet) OnPhaseStart(spec.Phase)   {}
func (quiet) OnSnapshot(Snapshot)       {}
func (quiet) OnError(error)             {}
func (quiet) OnComplete(results.Result) {}

// Discard is an Emitter that discards all events.
var Discard Emitter = quiet{}
