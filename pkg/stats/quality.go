package stats

import "math"

// Jitter is the mean absolute difference between successive samples in
// arrival order. Buffers with fewer than two samples have zero jitter.
func Jitter(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(samples); i++ {
		sum += math.Abs(samples[i] - samples[i-1])
	}
	return sum / float64(len(samples)-1)
}

// StabilityScore maps a summarized buffer's coefficient of variation
// onto a 0-100 integer scale. A perfectly steady buffer scores 100 and
// the score reaches 0 once the coefficient of variation hits 50%. A
// zero mean scores 0.
func StabilityScore(d Detailed) int {
	if d.Mean == 0 {
		return 0
	}
	score := 100 - (d.StdDev/d.Mean)*200
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

// TrendSlope is the ordinary least-squares slope of samples against
// their zero-based index, positive when values trend upward across the
// buffer. Fewer than two samples or a degenerate denominator yield 0.
func TrendSlope(samples []float64) float64 {
	n := float64(len(samples))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range samples {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	den := n*sumX2 - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}
