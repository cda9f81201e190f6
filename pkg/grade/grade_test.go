package grade_test

import (
	"testing"

	"github.com/netgauge/netgauge/pkg/grade"
)

func TestLatency(t *testing.T) {
	// Expected latency of 20ms.
	tests := []struct {
		name   string
		actual float64
		want   grade.Grade
	}{
		{name: "half of expected", actual: 10, want: grade.APlus},
		{name: "three quarters", actual: 15, want: grade.A},
		{name: "exactly expected", actual: 20, want: grade.B},
		{name: "fifty percent over", actual: 30, want: grade.C},
		{name: "double", actual: 40, want: grade.D},
		{name: "beyond double", actual: 41, want: grade.F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grade.Latency(tt.actual, 20); got != tt.want {
				t.Errorf("unexpected grade %s, want %s", got, tt.want)
			}
		})
	}
}

func TestThroughput(t *testing.T) {
	// Expected throughput of 100 Mbps.
	tests := []struct {
		name   string
		actual float64
		want   grade.Grade
	}{
		{name: "twenty percent over", actual: 120, want: grade.APlus},
		{name: "exactly expected", actual: 100, want: grade.A},
		{name: "eighty percent", actual: 80, want: grade.B},
		{name: "sixty percent", actual: 60, want: grade.C},
		{name: "forty percent", actual: 40, want: grade.D},
		{name: "below forty percent", actual: 39.9, want: grade.F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grade.Throughput(tt.actual, 100); got != tt.want {
				t.Errorf("unexpected grade %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name                   string
		download, upload, ping grade.Grade
		want                   grade.Grade
	}{
		{name: "all top", download: grade.APlus, upload: grade.APlus, ping: grade.APlus, want: grade.APlus},
		{name: "all a", download: grade.A, upload: grade.A, ping: grade.A, want: grade.A},
		{name: "one weak metric drags down", download: grade.A, upload: grade.A, ping: grade.F, want: grade.B},
		{name: "mixed middle", download: grade.B, upload: grade.C, ping: grade.C, want: grade.C},
		{name: "all failing", download: grade.F, upload: grade.F, ping: grade.F, want: grade.F},
		{name: "single d average", download: grade.D, upload: grade.D, ping: grade.F, want: grade.D},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := grade.Combine(tt.download, tt.upload, tt.ping)
			if got != tt.want {
				t.Errorf("unexpected grade %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		name                   string
		download, upload, ping float64
		wantScore              int
		wantGrade              string
	}{
		{name: "top tier", download: 600, upload: 250, ping: 5, wantScore: 100, wantGrade: "A+"},
		{name: "fast fiber", download: 300, upload: 150, ping: 8, wantScore: 91, wantGrade: "A-"},
		{name: "decent cable", download: 120, upload: 25, ping: 15, wantScore: 71, wantGrade: "C-"},
		{name: "slow link", download: 5, upload: 1, ping: 200, wantScore: 0, wantGrade: "F"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := grade.Rate(tt.download, tt.upload, tt.ping)
			if got.Score != tt.wantScore {
				t.Errorf("unexpected score %d, want %d", got.Score, tt.wantScore)
			}
			if got.Grade != tt.wantGrade {
				t.Errorf("unexpected grade %s, want %s", got.Grade, tt.wantGrade)
			}
		})
	}
}
