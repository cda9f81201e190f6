package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/netgauge/netgauge/pkg/results"
)

// Insight is one human-readable finding about the measurement history.
type Insight struct {
	// Kind names the rule that produced the finding.
	Kind string `json:"kind"`
	// Message is the finding itself.
	Message string `json:"message"`
}

// maxInsights caps how many findings are reported.
const maxInsights = 4

// Insights runs a fixed battery of rules over history and returns the
// first findings in rule order, at most 4. Rules that do not apply
// contribute nothing. An empty history yields no insights.
func Insights(history []results.Result, baseline results.Baseline, now time.Time) []Insight {
	if len(history) == 0 {
		return nil
	}

	var insights []Insight
	add := func(kind, format string, args ...any) {
		insights = append(insights, Insight{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	// Baseline ratio.
	if baseline.Validate() == nil {
		mean := meanDownload(history)
		switch ratio := mean / baseline.ExpectedDownload; {
		case ratio < 0.8:
			add("baseline", "average download (%.1f Mbps) is %.0f%% of your expected %.1f Mbps",
				mean, ratio*100, baseline.ExpectedDownload)
		case ratio > 1.1:
			add("baseline", "average download (%.1f Mbps) beats your expected %.1f Mbps",
				mean, baseline.ExpectedDownload)
		}
	}

	// Peak spread.
	if peaks := AnalyzePeaks(history); peaks != nil {
		best := hourMeanDownload(peaks, peaks.BestHour)
		worst := hourMeanDownload(peaks, peaks.WorstHour)
		if worst > 0 && best >= worst*1.5 {
			add("peaks", "speeds vary a lot over the day: best around %02d:00 (%.1f Mbps), worst around %02d:00 (%.1f Mbps)",
				peaks.BestHour, best, peaks.WorstHour, worst)
		}
	}

	// Stability thresholds.
	if score, ok := meanStability(history); ok {
		switch {
		case score < 50:
			add("stability", "connection is unstable (average stability %.0f/100)", score)
		case score >= 90:
			add("stability", "connection is very stable (average stability %.0f/100)", score)
		}
	}

	// Jitter thresholds.
	if jitter, ok := meanJitter(history); ok {
		switch {
		case jitter > 20:
			add("jitter", "latency jitter is high (%.1f ms on average)", jitter)
		case jitter < 5:
			add("jitter", "latency jitter is low (%.1f ms on average)", jitter)
		}
	}

	// Anomaly count.
	if anomalies := DetectAnomalies(history); len(anomalies) >= 3 {
		add("anomalies", "%d of your recent tests deviate sharply from your usual performance", len(anomalies))
	}

	// Testing cadence.
	switch {
	case len(history) < 5:
		add("cadence", "run more tests to unlock trend and anomaly analysis")
	case now.Sub(history[0].Timestamp) > 7*24*time.Hour:
		add("cadence", "your last test is over a week old, run one to keep history fresh")
	}

	// Network type comparison.
	if kind1, kind2, diff, ok := compareNetworkTypes(history); ok {
		add("network", "%s averages %.1f Mbps more download than %s", kind1, diff, kind2)
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

func meanDownload(history []results.Result) float64 {
	var sum float64
	for _, r := range history {
		sum += r.Download
	}
	return sum / float64(len(history))
}

// hourMeanDownload returns the mean download for one hour of a peak
// analysis, 0 when the hour is absent.
func hourMeanDownload(p *PeakAnalysis, hour int) float64 {
	for _, h := range p.Hours {
		if h.Hour == hour {
			return h.Download
		}
	}
	return 0
}

// meanStability averages the stability score over the results that
// carry a stats block. ok is false when none do.
func meanStability(history []results.Result) (float64, bool) {
	var sum float64
	count := 0
	for _, r := range history {
		if r.Stats == nil {
			continue
		}
		sum += float64(r.Stats.StabilityScore)
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// meanJitter averages jitter over the results that carry a stats
// block. ok is false when none do.
func meanJitter(history []results.Result) (float64, bool) {
	var sum float64
	count := 0
	for _, r := range history {
		if r.Stats == nil {
			continue
		}
		sum += r.Stats.Jitter
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// compareNetworkTypes finds the fastest and slowest network types by
// mean download. ok is false unless at least two types have two or
// more results each.
func compareNetworkTypes(history []results.Result) (fastest, slowest string, diff float64, ok bool) {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range history {
		if r.NetworkType == "" {
			continue
		}
		sums[r.NetworkType] += r.Download
		counts[r.NetworkType]++
	}

	kinds := make([]string, 0, len(counts))
	for kind, count := range counts {
		if count >= 2 {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)

	var best, worst string
	var bestMean, worstMean float64
	for _, kind := range kinds {
		mean := sums[kind] / float64(counts[kind])
		if best == "" || mean > bestMean {
			best, bestMean = kind, mean
		}
		if worst == "" || mean < worstMean {
			worst, worstMean = kind, mean
		}
	}
	if len(kinds) < 2 || bestMean <= worstMean {
		return "", "", 0, false
	}
	return best, worst, bestMean - worstMean, true
}
