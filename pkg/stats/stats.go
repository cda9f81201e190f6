// Package stats computes descriptive statistics and sample-quality
// metrics over raw measurement buffers.
package stats

import (
	"math"
	"sort"
)

// Detailed summarizes a buffer of raw samples. The zero value is the
// summary of an empty buffer.
type Detailed struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// Compute summarizes samples. The input slice is never modified and an
// empty or nil input yields the zero Detailed.
func Compute(samples []float64) Detailed {
	if len(samples) == 0 {
		return Detailed{}
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var sqDiff float64
	for _, v := range sorted {
		d := v - mean
		sqDiff += d * d
	}

	return Detailed{
		Mean:   mean,
		Median: median(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		StdDev: math.Sqrt(sqDiff / float64(len(sorted))),
		P95:    percentile(sorted, 0.95),
		P99:    percentile(sorted, 0.99),
	}
}

// median expects sorted input. An even count averages the two middle
// values.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile returns the nearest-rank percentile of sorted input with
// the rank rounded up, so small buffers resolve to a real sample rather
// than an interpolated value. p is a fraction in (0, 1].
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
