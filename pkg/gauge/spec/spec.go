// Package spec contains constants shared by the measurement controller,
// the API server and the live-measurement client.
package spec

import "time"

const (
	// SampleInterval is the interval between raw sample polls within a
	// phase.
	SampleInterval = 100 * time.Millisecond

	// DisplayInterval is the interval between smoothed live updates
	// emitted for display purposes.
	DisplayInterval = 300 * time.Millisecond

	// SmoothingWindow is the number of most recent raw samples averaged
	// into each smoothed live value.
	SmoothingWindow = 3

	// SpeedtestPath serves the one-shot speedtest query.
	SpeedtestPath = "/netgauge/v1/speedtest"
	// LivePath serves the live phased-measurement WebSocket endpoint.
	LivePath = "/netgauge/v1/live"

	// MaxRuntime is the maximum wall-clock runtime of a full
	// measurement, all phases included.
	MaxRuntime = 60 * time.Second

	// SecWebSocketProtocol is the value of the Sec-WebSocket-Protocol
	// header on the live endpoint.
	SecWebSocketProtocol = "net.netgauge.v1"
)

// Phase identifies one stage of a measurement. Phases always run in
// the order ping, download, upload.
type Phase string

const (
	// PhaseIdle is the state before a measurement starts.
	PhaseIdle = Phase("idle")

	// PhasePing is the latency measurement phase.
	PhasePing = Phase("ping")

	// PhaseDownload is the download throughput phase.
	PhaseDownload = Phase("download")

	// PhaseUpload is the upload throughput phase.
	PhaseUpload = Phase("upload")

	// PhaseDone is the state after the last phase completes.
	PhaseDone = Phase("done")
)

// Profile selects how long each measurement phase runs.
type Profile string

const (
	// ProfileQuick runs each phase for 3 seconds.
	ProfileQuick = Profile("quick")

	// ProfileStandard runs each phase for 5 seconds.
	ProfileStandard = Profile("standard")

	// ProfileExtended runs each phase for 10 seconds.
	ProfileExtended = Profile("extended")
)

// Duration returns the per-phase wall-clock duration for this profile.
// Unknown profiles fall back to the standard duration.
func (p Profile) Duration() time.Duration {
	switch p {
	case ProfileQuick:
		return 3 * time.Second
	case ProfileExtended:
		return 10 * time.Second
	default:
		return 5 * time.Second
	}
}

// Valid reports whether p names a known profile.
func (p Profile) Valid() bool {
	switch p {
	case ProfileQuick, ProfileStandard, ProfileExtended:
		return true
	}
	return false
}
