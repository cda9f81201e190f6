// Package grade turns measured performance into letter grades.
//
// Grades are relative to a user-provided baseline of expected values.
// The absolute ScoreCard rating used by the speedtest query endpoint
// lives in score.go and is intentionally a separate scheme.
package grade

// Grade is a letter grade for a single metric or a whole measurement.
type Grade string

const (
	APlus Grade = "A+"
	A     Grade = "A"
	B     Grade = "B"
	C     Grade = "C"
	D     Grade = "D"
	F     Grade = "F"
)

// points is the scale used when averaging per-metric grades into an
// overall grade.
var points = map[Grade]float64{
	APlus: 4.3,
	A:     4.0,
	B:     3.0,
	C:     2.0,
	D:     1.0,
	F:     0,
}

// Latency grades a measured latency against the expected one. Lower is
// better: matching the expectation earns a B, halving it earns an A+.
func Latency(actual, expected float64) Grade {
	switch {
	case actual <= expected*0.5:
		return APlus
	case actual <= expected*0.75:
		return A
	case actual <= expected:
		return B
	case actual <= expected*1.5:
		return C
	case actual <= expected*2:
		return D
	default:
		return F
	}
}

// Throughput grades a measured throughput against the expected one.
// Higher is better: meeting the expectation earns an A, exceeding it by
// 20% earns an A+.
func Throughput(actual, expected float64) Grade {
	switch {
	case actual >= expected*1.2:
		return APlus
	case actual >= expected:
		return A
	case actual >= expected*0.8:
		return B
	case actual >= expected*0.6:
		return C
	case actual >= expected*0.4:
		return D
	default:
		return F
	}
}

// Combine averages the download, upload and ping grades on the points
// scale and maps the average back to a letter. An A+ overall requires
// near-perfect component grades.
func Combine(download, upload, ping Grade) Grade {
	avg := (points[download] + points[upload] + points[ping]) / 3
	switch {
	case avg >= 4.2:
		return APlus
	case avg >= 3.5:
		return A
	case avg >= 2.5:
		return B
	case avg >= 1.5:
		return C
	case avg >= 0.5:
		return D
	default:
		return F
	}
}
