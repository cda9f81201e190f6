package grade

// ScoreCard is an absolute 0-100 rating of a single measurement with a
// finer letter scale than the baseline-relative grades. The speedtest
// query endpoint reports this rating, since a one-shot query has no
// baseline to grade against.
type ScoreCard struct {
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

// Rate scores a measurement on absolute thresholds. Download
// contributes up to 40 points, upload and ping up to 30 each.
func Rate(download, upload, ping float64) ScoreCard {
	score := 0

	switch {
	case download >= 500:
		score += 40
	case download >= 250:
		score += 35
	case download >= 100:
		score += 30
	case download >= 50:
		score += 22
	case download >= 25:
		score += 15
	case download >= 10:
		score += 8
	}

	switch {
	case upload >= 200:
		score += 30
	case upload >= 100:
		score += 26
	case upload >= 50:
		score += 21
	case upload >= 20:
		score += 15
	case upload >= 10:
		score += 8
	}

	switch {
	case ping < 10:
		score += 30
	case ping < 20:
		score += 26
	case ping < 40:
		score += 21
	case ping < 80:
		score += 14
	case ping < 150:
		score += 7
	}

	return ScoreCard{Score: score, Grade: band(score)}
}

func band(score int) string {
	switch {
	case score >= 97:
		return "A+"
	case score >= 93:
		return "A"
	case score >= 90:
		return "A-"
	case score >= 87:
		return "B+"
	case score >= 83:
		return "B"
	case score >= 80:
		return "B-"
	case score >= 77:
		return "C+"
	case score >= 73:
		return "C"
	case score >= 70:
		return "C-"
	case score >= 67:
		return "D+"
	case score >= 63:
		return "D"
	case score >= 60:
		return "D-"
	default:
		return "F"
	}
}
