package export_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/netgauge/netgauge/pkg/export"
	"github.com/netgauge/netgauge/pkg/results"
)

const wantHeader = "Timestamp,Date,Time,Download (Mbps),Upload (Mbps),Ping (ms),Grade,Jitter,Stability Score"

func testHistory() []results.Result {
	ts := time.Date(2026, 8, 20, 15, 4, 5, 0, time.UTC)
	return []results.Result{
		{
			ID: "b", Timestamp: ts, Download: 120.5, Upload: 60.1, Ping: 12,
			Stats: &results.Stats{
				Grade:          "A",
				Jitter:         1.5,
				StabilityScore: 92,
			},
		},
		{
			ID: "a", Timestamp: ts.Add(-time.Hour), Download: 98.3, Upload: 45, Ping: 18,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, testHistory()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected line count %d: %q", len(lines), buf.String())
	}
	if lines[0] != wantHeader {
		t.Errorf("unexpected header %q", lines[0])
	}

	first := strings.Split(lines[1], ",")
	if first[3] != "120.5" || first[4] != "60.1" || first[5] != "12" {
		t.Errorf("unexpected first row values: %q", lines[1])
	}
	if first[6] != "A" || first[7] != "1.50" || first[8] != "92" {
		t.Errorf("unexpected first row stats cells: %q", lines[1])
	}

	// The second result has no stats block, so its stats cells are
	// empty.
	second := strings.Split(lines[2], ",")
	if second[6] != "" || second[7] != "" || second[8] != "" {
		t.Errorf("unexpected second row stats cells: %q", lines[2])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != wantHeader {
		t.Errorf("empty export must still write the header, got %q", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, testHistory()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded []results.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("unexpected result count %d", len(decoded))
	}
	if decoded[0].ID != "b" || decoded[0].Stats == nil {
		t.Errorf("unexpected first result %+v", decoded[0])
	}
	if decoded[1].Stats != nil {
		t.Errorf("second result should have no stats block")
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("export should be indented")
	}
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty history must export an empty array, got %q", buf.String())
	}
}
