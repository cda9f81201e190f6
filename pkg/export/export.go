// Package export writes measurement history in portable formats.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/netgauge/netgauge/pkg/results"
)

// csvRow is the flat CSV export row. The csv tags define the exact
// header, which external tooling depends on.
type csvRow struct {
	Timestamp int64   `csv:"Timestamp"`
	Date      string  `csv:"Date"`
	Time      string  `csv:"Time"`
	Download  float64 `csv:"Download (Mbps)"`
	Upload    float64 `csv:"Upload (Mbps)"`
	Ping      float64 `csv:"Ping (ms)"`
	Grade     string  `csv:"Grade"`
	Jitter    string  `csv:"Jitter"`
	Stability string  `csv:"Stability Score"`
}

// WriteCSV writes history to w as CSV, one row per result in the given
// (newest-first) order. Results without a stats block leave the grade,
// jitter and stability cells empty.
func WriteCSV(w io.Writer, history []results.Result) error {
	rows := make([]csvRow, 0, len(history))
	for _, r := range history {
		local := r.Timestamp.Local()
		row := csvRow{
			Timestamp: r.Timestamp.UnixMilli(),
			Date:      local.Format("2006-01-02"),
			Time:      local.Format("15:04:05"),
			Download:  r.Download,
			Upload:    r.Upload,
			Ping:      r.Ping,
		}
		if r.Stats != nil {
			row.Grade = string(r.Stats.Grade)
			row.Jitter = strconv.FormatFloat(r.Stats.Jitter, 'f', 2, 64)
			row.Stability = strconv.Itoa(r.Stats.StabilityScore)
		}
		rows = append(rows, row)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("cannot write CSV: %w", err)
	}
	return nil
}

// WriteJSON writes history to w as an indented JSON array. An empty
// history writes an empty array, not null.
func WriteJSON(w io.Writer, history []results.Result) error {
	if history == nil {
		history = []results.Result{}
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal history: %w", err)
	}
	_, err = w.Write(data)
	return err
}
