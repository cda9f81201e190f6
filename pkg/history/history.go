// Package history derives analytics from stored measurement history.
//
// Every function in this package is a pure function over a history
// slice ordered newest-first, the order the store lists results in.
// History is never modified.
package history

import (
	"time"

	"github.com/netgauge/netgauge/pkg/results"
)

// WindowStats is the average performance over one rolling window.
type WindowStats struct {
	// Count is the number of results inside the window.
	Count int `json:"count"`
	// Download, Upload and Ping are the mean values over the window.
	// They are zero when the window is empty.
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
	Ping     float64 `json:"ping"`
}

// Windows holds the rolling window averages reported by the overview
// analytics.
type Windows struct {
	// Day covers the last 24 hours.
	Day WindowStats `json:"day"`
	// Week covers the last 7 days.
	Week WindowStats `json:"week"`
	// Month covers the last 30 days.
	Month WindowStats `json:"month"`
}

// WindowAverages buckets history into the last 24 hours, 7 days and 30
// days relative to now and averages each bucket. Results exactly on a
// window boundary are included.
func WindowAverages(history []results.Result, now time.Time) Windows {
	return Windows{
		Day:   windowStats(history, now, 24*time.Hour),
		Week:  windowStats(history, now, 7*24*time.Hour),
		Month: windowStats(history, now, 30*24*time.Hour),
	}
}

func windowStats(history []results.Result, now time.Time, window time.Duration) WindowStats {
	cutoff := now.Add(-window)
	var stats WindowStats
	for _, r := range history {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		stats.Count++
		stats.Download += r.Download
		stats.Upload += r.Upload
		stats.Ping += r.Ping
	}
	if stats.Count > 0 {
		n := float64(stats.Count)
		stats.Download /= n
		stats.Upload /= n
		stats.Ping /= n
	}
	return stats
}
