// Package sim provides a simulated measurement source anchored on a
// configured baseline. It stands in for real network probing in the
// CLI, the API server and tests.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/results"
)

// rampSamples is how many samples a throughput phase takes to climb
// from half speed to full speed.
const rampSamples = 8

// Server describes one simulated test server.
type Server struct {
	// ID is the server's stable identifier.
	ID string `json:"id" yaml:"id"`
	// Name is the display name.
	Name string `json:"name" yaml:"name"`
	// Location is the server's advertised location.
	Location string `json:"location" yaml:"location"`
	// Bias scales this server's simulated throughput. Zero means
	// neutral (1.0).
	Bias float64 `json:"-" yaml:"bias"`
}

// Source generates noisy samples around a baseline. A Source tracks
// ramp-up state per phase, so concurrent measurements must each use
// their own Source (see Fork).
type Source struct {
	baseline results.Baseline
	bias     float64

	mu         sync.Mutex
	rnd        *rand.Rand
	lastPhase  spec.Phase
	phaseCalls int
}

// New returns a Source anchored on baseline. A zero seed picks a
// time-based one. bias scales throughput; zero means neutral.
func New(baseline results.Baseline, bias float64, seed int64) *Source {
	if bias == 0 {
		bias = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		baseline: baseline,
		bias:     bias,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// Fork returns an independent Source with the same baseline and bias,
// seeded from this one.
func (s *Source) Fork() *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return New(s.baseline, s.bias, s.rnd.Int63())
}

// Sample draws the next raw sample for phase. Latency samples are in
// milliseconds, throughput samples in Mbps.
func (s *Source) Sample(ctx context.Context, phase spec.Phase) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if phase != s.lastPhase {
		s.lastPhase = phase
		s.phaseCalls = 0
	}
	s.phaseCalls++

	switch phase {
	case spec.PhasePing:
		return s.ping(), nil
	case spec.PhaseDownload:
		return s.throughput(s.baseline.ExpectedDownload), nil
	case spec.PhaseUpload:
		return s.throughput(s.baseline.ExpectedUpload), nil
	default:
		return 0, fmt.Errorf("no samples for phase %q", phase)
	}
}

// ping draws a latency sample around the expected ping, with an
// occasional congestion spike.
func (s *Source) ping() float64 {
	v := s.baseline.ExpectedPing * (0.85 + s.rnd.Float64()*0.3)
	if s.rnd.Float64() < 0.05 {
		v *= 2 + s.rnd.Float64()
	}
	return v
}

// throughput climbs from half speed over the first rampSamples of a
// phase, then hovers around the target with 10% noise.
func (s *Source) throughput(expected float64) float64 {
	target := expected * s.bias
	ramp := 1.0
	if s.phaseCalls < rampSamples {
		ramp = 0.5 + 0.5*float64(s.phaseCalls)/rampSamples
	}
	return target * ramp * (0.9 + s.rnd.Float64()*0.2)
}

// Instant is a one-shot performance draw used by the speedtest query
// endpoint, already rounded for presentation.
type Instant struct {
	Download float64
	Upload   float64
	Ping     float64
	Jitter   float64
}

// Instant draws a one-shot reading around the baseline.
func (s *Source) Instant() Instant {
	s.mu.Lock()
	defer s.mu.Unlock()
	ping := s.baseline.ExpectedPing * (0.85 + s.rnd.Float64()*0.3)
	return Instant{
		Download: round1(s.baseline.ExpectedDownload * s.bias * (0.85 + s.rnd.Float64()*0.3)),
		Upload:   round1(s.baseline.ExpectedUpload * s.bias * (0.85 + s.rnd.Float64()*0.3)),
		Ping:     math.Round(ping),
		Jitter:   round2(ping * (0.05 + s.rnd.Float64()*0.1)),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
