package history

import (
	"time"

	"github.com/netgauge/netgauge/pkg/results"
	"github.com/netgauge/netgauge/pkg/stats"
)

// Severity classifies how badly an anomalous result deviates.
type Severity string

const (
	// SeverityWarning marks a statistically significant deviation.
	SeverityWarning = Severity("warning")

	// SeverityCritical marks a deviation beyond half the historical
	// mean (throughput) or beyond double it (ping).
	SeverityCritical = Severity("critical")
)

// Anomaly is one recent result whose metric deviates from the
// historical mean by more than two standard deviations.
type Anomaly struct {
	// ResultID identifies the anomalous result.
	ResultID string `json:"resultId"`
	// Timestamp is the anomalous result's completion time.
	Timestamp time.Time `json:"timestamp"`
	// Metric names the deviating metric: download, upload or ping.
	Metric string `json:"metric"`
	// Value is the measured value.
	Value float64 `json:"value"`
	// Mean is the historical mean the value deviates from.
	Mean float64 `json:"mean"`
	// Severity is warning or critical.
	Severity Severity `json:"severity"`
}

// maxAnomalyScan is how many of the most recent results are checked.
const maxAnomalyScan = 10

// maxAnomalies caps the number of anomalies returned.
const maxAnomalies = 5

// DetectAnomalies compares the most recent results against means and
// standard deviations computed over the whole history. Throughput
// anomalies are drops of more than two standard deviations below the
// mean; ping anomalies are spikes of more than two above. It returns
// nil unless history holds at least 5 results, and at most 5 anomalies
// in newest-first order.
func DetectAnomalies(history []results.Result) []Anomaly {
	if len(history) < 5 {
		return nil
	}

	downloads := make([]float64, len(history))
	uploads := make([]float64, len(history))
	pings := make([]float64, len(history))
	for i, r := range history {
		downloads[i] = r.Download
		uploads[i] = r.Upload
		pings[i] = r.Ping
	}
	downloadStats := stats.Compute(downloads)
	uploadStats := stats.Compute(uploads)
	pingStats := stats.Compute(pings)

	scan := history
	if len(scan) > maxAnomalyScan {
		scan = scan[:maxAnomalyScan]
	}

	var anomalies []Anomaly
	for _, r := range scan {
		if a, ok := throughputAnomaly(r, "download", r.Download, downloadStats); ok {
			anomalies = append(anomalies, a)
		}
		if a, ok := throughputAnomaly(r, "upload", r.Upload, uploadStats); ok {
			anomalies = append(anomalies, a)
		}
		if a, ok := pingAnomaly(r, pingStats); ok {
			anomalies = append(anomalies, a)
		}
		if len(anomalies) >= maxAnomalies {
			return anomalies[:maxAnomalies]
		}
	}
	return anomalies
}

func throughputAnomaly(r results.Result, metric string, value float64, d stats.Detailed) (Anomaly, bool) {
	if value >= d.Mean-2*d.StdDev {
		return Anomaly{}, false
	}
	severity := SeverityWarning
	if value < d.Mean*0.5 {
		severity = SeverityCritical
	}
	return Anomaly{
		ResultID:  r.ID,
		Timestamp: r.Timestamp,
		Metric:    metric,
		Value:     value,
		Mean:      d.Mean,
		Severity:  severity,
	}, true
}

func pingAnomaly(r results.Result, d stats.Detailed) (Anomaly, bool) {
	if r.Ping <= d.Mean+2*d.StdDev {
		return Anomaly{}, false
	}
	severity := SeverityWarning
	if r.Ping > d.Mean*2 {
		severity = SeverityCritical
	}
	return Anomaly{
		ResultID:  r.ID,
		Timestamp: r.Timestamp,
		Metric:    "ping",
		Value:     r.Ping,
		Mean:      d.Mean,
		Severity:  severity,
	}, true
}
