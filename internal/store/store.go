// Package store persists measurement history and the grading baseline
// in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/netgauge/netgauge/pkg/results"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a result ID does not exist.
var ErrNotFound = errors.New("result not found")

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	download REAL NOT NULL,
	upload REAL NOT NULL,
	ping REAL NOT NULL,
	network_type TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	server_id TEXT NOT NULL DEFAULT '',
	dns_lookup_ms REAL NOT NULL DEFAULT 0,
	stats TEXT
);
CREATE INDEX IF NOT EXISTS idx_results_timestamp ON results(timestamp DESC);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store wraps the SQLite database holding history and settings.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path, applying
// the schema and the SQLite pragmas.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one result. Appending an ID that already exists is an
// error: results are immutable.
func (s *Store) Append(ctx context.Context, r results.Result) error {
	var statsJSON any
	if r.Stats != nil {
		data, err := json.Marshal(r.Stats)
		if err != nil {
			return fmt.Errorf("cannot marshal stats: %w", err)
		}
		statsJSON = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results(id, timestamp, download, upload, ping,
			network_type, location, server_id, dns_lookup_ms, stats)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Timestamp.UnixMilli(), r.Download, r.Upload, r.Ping,
		r.NetworkType, r.Location, r.ServerID, r.DNSLookupMs, statsJSON,
	)
	if err != nil {
		return fmt.Errorf("cannot append result: %w", err)
	}
	return nil
}

// List returns results newest-first. A limit of 0 or less returns
// everything. A malformed stats column is logged and treated as
// absent, never as a failure.
func (s *Store) List(ctx context.Context, limit int) ([]results.Result, error) {
	query := `SELECT id, timestamp, download, upload, ping,
		network_type, location, server_id, dns_lookup_ms, stats
		FROM results ORDER BY timestamp DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []results.Result
	for rows.Next() {
		var r results.Result
		var ms int64
		var statsJSON sql.NullString
		err := rows.Scan(&r.ID, &ms, &r.Download, &r.Upload, &r.Ping,
			&r.NetworkType, &r.Location, &r.ServerID, &r.DNSLookupMs, &statsJSON)
		if err != nil {
			return nil, err
		}
		r.Timestamp = time.UnixMilli(ms).UTC()
		if statsJSON.Valid && statsJSON.String != "" {
			var st results.Stats
			if err := json.Unmarshal([]byte(statsJSON.String), &st); err != nil {
				log.Warn("dropping malformed stats column", "id", r.ID, "error", err)
			} else {
				r.Stats = &st
			}
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// Count returns the number of stored results.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n)
	return n, err
}

// Delete removes one result by ID. It returns ErrNotFound when the ID
// does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune enforces the retention policy: at most maxRecords newest
// results, and nothing older than maxAge when maxAge is positive. It
// returns how many results were removed.
func (s *Store) Prune(ctx context.Context, maxRecords int, maxAge time.Duration) (int, error) {
	removed := 0
	if maxRecords > 0 {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM results WHERE id NOT IN (
				SELECT id FROM results ORDER BY timestamp DESC, rowid DESC LIMIT ?)`,
			maxRecords)
		if err != nil {
			return removed, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge).UnixMilli()
		res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE timestamp < ?`, cutoff)
		if err != nil {
			return removed, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

// baselineKey is the settings key holding the grading baseline.
const baselineKey = "baseline"

// SaveBaseline stores the grading baseline after validating it.
func (s *Store) SaveBaseline(ctx context.Context, b results.Baseline) error {
	if err := b.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		baselineKey, string(data))
	return err
}

// Baseline returns the stored grading baseline. ok is false when no
// valid baseline has been saved; a malformed stored value is logged
// and treated as absent.
func (s *Store) Baseline(ctx context.Context) (results.Baseline, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, baselineKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return results.Baseline{}, false, nil
	}
	if err != nil {
		return results.Baseline{}, false, err
	}
	var b results.Baseline
	if err := json.Unmarshal([]byte(value), &b); err != nil {
		log.Warn("dropping malformed baseline", "error", err)
		return results.Baseline{}, false, nil
	}
	return b, true, nil
}
