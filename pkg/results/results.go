// Package results holds the measurement result types shared by the
// controller, the history store and the archival pipeline.
package results

import (
	"errors"
	"time"

	"github.com/m-lab/go/prometheusx"
	"github.com/netgauge/netgauge/pkg/grade"
	"github.com/netgauge/netgauge/pkg/stats"
	"github.com/netgauge/netgauge/pkg/version"
)

// Result is one completed measurement. Results are immutable once
// created: analytics read stored history, they never modify it.
type Result struct {
	// ID is the unique identifier for this measurement.
	ID string `json:"id"`
	// Timestamp is the measurement's completion time.
	Timestamp time.Time `json:"timestamp"`
	// Download is the download throughput in Mbps, rounded to 0.1.
	Download float64 `json:"download"`
	// Upload is the upload throughput in Mbps, rounded to 0.1.
	Upload float64 `json:"upload"`
	// Ping is the round-trip latency in milliseconds, rounded to an
	// integer value.
	Ping float64 `json:"ping"`

	// NetworkType optionally tags the network the test ran on, e.g.
	// "wifi" or "ethernet".
	NetworkType string `json:"networkType,omitempty"`
	// Location optionally tags where the test ran.
	Location string `json:"location,omitempty"`
	// ServerID optionally identifies the server the test ran against.
	ServerID string `json:"serverId,omitempty"`
	// DNSLookupMs optionally records the DNS lookup time in
	// milliseconds.
	DNSLookupMs float64 `json:"dnsLookupMs,omitempty"`

	// Stats holds the per-phase statistics. It is present exactly when
	// the Result came from a completed phased measurement; one-shot
	// queries leave it nil.
	Stats *Stats `json:"stats,omitempty"`
}

// Stats is the statistics block of a completed phased measurement.
type Stats struct {
	// Download summarizes the raw download samples (Mbps).
	Download stats.Detailed `json:"download"`
	// Upload summarizes the raw upload samples (Mbps).
	Upload stats.Detailed `json:"upload"`
	// Ping summarizes the raw latency samples (ms).
	Ping stats.Detailed `json:"ping"`
	// Jitter is the mean absolute successive difference of the latency
	// samples (ms).
	Jitter float64 `json:"jitter"`
	// StabilityScore rates the steadiness of the download phase, 0-100.
	StabilityScore int `json:"stabilityScore"`
	// Grade is the overall baseline-relative grade.
	Grade grade.Grade `json:"grade"`
	// TrendSlope combines the three per-phase trends into one
	// within-test trend figure.
	TrendSlope float64 `json:"trendSlope"`
}

// Baseline holds the expected performance a connection is graded
// against.
type Baseline struct {
	// ExpectedDownload is the expected download throughput in Mbps.
	ExpectedDownload float64 `json:"expectedDownload"`
	// ExpectedUpload is the expected upload throughput in Mbps.
	ExpectedUpload float64 `json:"expectedUpload"`
	// ExpectedPing is the expected round-trip latency in milliseconds.
	ExpectedPing float64 `json:"expectedPing"`
}

// ErrInvalidBaseline is returned by Validate when any expectation is
// not a positive number.
var ErrInvalidBaseline = errors.New("baseline values must be positive")

// Validate checks that every expected value is positive.
func (b Baseline) Validate() error {
	if b.ExpectedDownload <= 0 || b.ExpectedUpload <= 0 || b.ExpectedPing <= 0 {
		return ErrInvalidBaseline
	}
	return nil
}

// ArchivalRecord is the struct that is serialized as JSON to disk as
// the archival record of a completed measurement.
type ArchivalRecord struct {
	// GitShortCommit is the Git commit (short form) of the running code.
	GitShortCommit string
	// Version is the symbolic version (if any) of the running code.
	Version string

	// Result is the summarized measurement.
	Result Result

	// Profile names the measurement profile that ran.
	Profile string
	// PhaseDuration is the per-phase wall-clock duration used.
	PhaseDuration time.Duration

	// PingSamples, DownloadSamples and UploadSamples are the raw
	// buffers the summary was computed from.
	PingSamples     []float64
	DownloadSamples []float64
	UploadSamples   []float64
}

// NewArchivalRecord wraps a completed Result and its raw sample buffers
// for archival.
func NewArchivalRecord(res Result, profile string, phaseDuration time.Duration,
	ping, download, upload []float64) *ArchivalRecord {
	return &ArchivalRecord{
		GitShortCommit:  prometheusx.GitShortCommit,
		Version:         version.Version,
		Result:          res,
		Profile:         profile,
		PhaseDuration:   phaseDuration,
		PingSamples:     ping,
		DownloadSamples: download,
		UploadSamples:   upload,
	}
}
