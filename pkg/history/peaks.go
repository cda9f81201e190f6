package history

import (
	"github.com/netgauge/netgauge/pkg/results"
)

// HourStats is the average performance for one local hour of day.
type HourStats struct {
	// Hour is the local hour of day, 0-23.
	Hour int `json:"hour"`
	// Count is the number of results measured in that hour.
	Count int `json:"count"`
	// Download, Upload and Ping are the mean values for that hour.
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
	Ping     float64 `json:"ping"`
}

// PeakAnalysis describes how performance varies over the day.
type PeakAnalysis struct {
	// Hours lists the hours that have at least one result, in
	// ascending hour order.
	Hours []HourStats `json:"hours"`
	// BestHour and WorstHour are the local hours with the highest and
	// lowest mean download.
	BestHour  int `json:"bestHour"`
	WorstHour int `json:"worstHour"`
	// Morning (6-12), Afternoon (12-18), Evening (18-22) and Night
	// (22-6) are mean downloads per part of day, zero when a part has
	// no results.
	Morning   float64 `json:"morning"`
	Afternoon float64 `json:"afternoon"`
	Evening   float64 `json:"evening"`
	Night     float64 `json:"night"`
}

// AnalyzePeaks aggregates history by local hour of day. It returns nil
// unless history holds at least 3 results spanning at least 2 distinct
// local hours.
func AnalyzePeaks(history []results.Result) *PeakAnalysis {
	if len(history) < 3 {
		return nil
	}

	var hours [24]HourStats
	distinct := 0
	for _, r := range history {
		h := r.Timestamp.Local().Hour()
		if hours[h].Count == 0 {
			distinct++
		}
		hours[h].Count++
		hours[h].Download += r.Download
		hours[h].Upload += r.Upload
		hours[h].Ping += r.Ping
	}
	if distinct < 2 {
		return nil
	}

	analysis := &PeakAnalysis{BestHour: -1, WorstHour: -1}
	var bestMean, worstMean float64
	var partSum, partCount [4]float64
	for h := range hours {
		if hours[h].Count == 0 {
			continue
		}
		n := float64(hours[h].Count)
		stats := HourStats{
			Hour:     h,
			Count:    hours[h].Count,
			Download: hours[h].Download / n,
			Upload:   hours[h].Upload / n,
			Ping:     hours[h].Ping / n,
		}
		analysis.Hours = append(analysis.Hours, stats)

		if analysis.BestHour == -1 || stats.Download > bestMean {
			analysis.BestHour, bestMean = h, stats.Download
		}
		if analysis.WorstHour == -1 || stats.Download < worstMean {
			analysis.WorstHour, worstMean = h, stats.Download
		}

		p := dayPart(h)
		partSum[p] += hours[h].Download
		partCount[p] += n
	}

	if partCount[0] > 0 {
		analysis.Morning = partSum[0] / partCount[0]
	}
	if partCount[1] > 0 {
		analysis.Afternoon = partSum[1] / partCount[1]
	}
	if partCount[2] > 0 {
		analysis.Evening = partSum[2] / partCount[2]
	}
	if partCount[3] > 0 {
		analysis.Night = partSum[3] / partCount[3]
	}
	return analysis
}

// dayPart maps a local hour to its part of day: 0 morning, 1
// afternoon, 2 evening, 3 night.
func dayPart(hour int) int {
	switch {
	case hour >= 6 && hour < 12:
		return 0
	case hour >= 12 && hour < 18:
		return 1
	case hour >= 18 && hour < 22:
		return 2
	default:
		return 3
	}
}
