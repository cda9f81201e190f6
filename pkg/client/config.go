package client

import (
	"time"

	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
)

// Config is the configuration for a Client.
type Config struct {
	// Server is the host:port of the netgauge server to connect to.
	Server string

	// Scheme is the WebSocket scheme used to connect to the server (ws or wss).
	Scheme string

	// Profile selects the per-phase duration requested from the server.
	Profile spec.Profile

	// PhaseDuration optionally overrides the profile's per-phase duration
	// on the server.
	PhaseDuration time.Duration

	// ServerID optionally selects a catalogue server on the remote end.
	ServerID string

	// MeasurementID is the measurement id ("mid") to pass to the server.
	// If empty, a random one is generated.
	MeasurementID string

	// Emitter is the interface used to emit measurement progress. It can be
	// overridden to provide a custom output.
	Emitter gauge.Emitter

	// NoVerify disables the TLS certificate verification.
	NoVerify bool
}
