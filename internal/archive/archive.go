// Package archive persists finished collection verdicts to SQLite for
// audit. It is strictly post-hoc: the scheduler never reads from it, and
// it holds no job state — only the CollectResult each batch ended with.
// The /v1/archive endpoints serve Recent and Get.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/ogi"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id          TEXT PRIMARY KEY,
	template    TEXT NOT NULL,
	venue       TEXT NOT NULL,
	quorum_met  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	timed_out   TEXT NOT NULL,
	results     TEXT NOT NULL,
	archived_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_archived_at ON batches(archived_at);
`

// Store is a SQLite-backed archive of collected batches.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Record is one archived batch verdict.
type Record struct {
	BatchID    string       `json:"batch_id"`
	Template   string       `json:"template"`
	Venue      string       `json:"venue"`
	QuorumMet  bool         `json:"quorum_met"`
	DurationMS int64        `json:"duration_ms"`
	TimedOut   []string     `json:"timed_out"`
	Results    []ogi.Result `json:"results"`
	ArchivedAt time.Time    `json:"archived_at"`
}

// Open creates or opens the archive database at path and ensures the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: ensure schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Save archives one batch verdict. Duplicate batch IDs overwrite the
// previous record (re-collection of the same batch keeps the last verdict).
func (s *Store) Save(ctx context.Context, batchID, template, venue string, cr ogi.CollectResult) error {
	timedOut, err := json.Marshal(cr.TimedOut)
	if err != nil {
		return fmt.Errorf("archive: marshal timed_out: %w", err)
	}
	results, err := json.Marshal(cr.Results)
	if err != nil {
		return fmt.Errorf("archive: marshal results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches (id, template, venue, quorum_met, duration_ms, timed_out, results, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quorum_met = excluded.quorum_met,
			duration_ms = excluded.duration_ms,
			timed_out = excluded.timed_out,
			results = excluded.results,
			archived_at = excluded.archived_at`,
		batchID, template, venue, cr.QuorumMet, cr.DurationMS,
		string(timedOut), string(results), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive: save batch %s: %w", batchID, err)
	}

	s.logger.Debug("archive: batch saved", "batch_id", batchID, "results", len(cr.Results))
	return nil
}

// Recent returns up to limit archived batches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template, venue, quorum_met, duration_ms, timed_out, results, archived_at
		FROM batches ORDER BY archived_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: query recent: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var timedOut, results string
		if err := rows.Scan(&rec.BatchID, &rec.Template, &rec.Venue, &rec.QuorumMet,
			&rec.DurationMS, &timedOut, &results, &rec.ArchivedAt); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(timedOut), &rec.TimedOut); err != nil {
			return nil, fmt.Errorf("archive: decode timed_out: %w", err)
		}
		if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
			return nil, fmt.Errorf("archive: decode results: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one archived batch; the second value is false when absent.
func (s *Store) Get(ctx context.Context, batchID string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, template, venue, quorum_met, duration_ms, timed_out, results, archived_at
		FROM batches WHERE id = ?`, batchID)

	var rec Record
	var timedOut, results string
	err := row.Scan(&rec.BatchID, &rec.Template, &rec.Venue, &rec.QuorumMet,
		&rec.DurationMS, &timedOut, &results, &rec.ArchivedAt)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("archive: get batch %s: %w", batchID, err)
	}
	if err := json.Unmarshal([]byte(timedOut), &rec.TimedOut); err != nil {
		return Record{}, false, fmt.Errorf("archive: decode timed_out: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
		return Record{}, false, fmt.Errorf("archive: decode results: %w", err)
	}
	return rec, true, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
