// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/pattern"
)

// observationSchema is the append-only log table. The primary key on id
// makes Append idempotent under event redelivery.
const observationSchema = `
CREATE TABLE IF NOT EXISTS observations (
	id          VARCHAR PRIMARY KEY,
	fingerprint VARCHAR NOT NULL,
	hook_type   VARCHAR NOT NULL,
	emotion     VARCHAR NOT NULL,
	pacing      VARCHAR NOT NULL,
	cta_type    VARCHAR NOT NULL,
	pain        VARCHAR NOT NULL,
	category    VARCHAR NOT NULL,
	event_type  VARCHAR NOT NULL,
	success     BOOLEAN NOT NULL,
	source      SMALLINT NOT NULL,
	ts          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_obs_fingerprint ON observations (fingerprint, ts);
CREATE INDEX IF NOT EXISTS idx_obs_category ON observations (category, ts);
`

// DuckDBStore is the durable observation log backed by an embedded
// DuckDB database. Analytical reads (time-windowed scans per pattern or
// category) are DuckDB's home ground; writes are single-row appends.
type DuckDBStore struct {
	conn *sql.DB
}

// NewDuckDBStore opens (or creates) the observation log at path.
// Pass ":memory:" for an ephemeral log.
func NewDuckDBStore(path string) (*DuckDBStore, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create observation log directory %s: %w", dir, err)
		}
	}

	// Auto-install/auto-load stays off so opening never touches the
	// network; the log uses no extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false", path)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open observation log: %w", err)
	}

	if _, err := conn.Exec(observationSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize observation log schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("observation log opened")
	return &DuckDBStore{conn: conn}, nil
}

// Append records one observation; duplicate IDs are ignored.
func (s *DuckDBStore) Append(ctx context.Context, obs pattern.Observation) error {
	p := obs.Pattern
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO observations
		 (id, fingerprint, hook_type, emotion, pacing, cta_type, pain, category, event_type, success, source, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.ID, p.Fingerprint(), p.Hook, p.Emotion, p.Pacing, p.CTA, p.Pain, p.Category,
		obs.EventType, obs.Success, int(obs.Source), obs.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("%w: append observation %s: %v", ErrUnavailable, obs.ID, err)
	}
	return nil
}

// ByFingerprint returns a pattern's observations since the cutoff,
// ordered by ascending timestamp.
func (s *DuckDBStore) ByFingerprint(ctx context.Context, fingerprint string, since time.Time) ([]pattern.Observation, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, hook_type, emotion, pacing, cta_type, pain, category, event_type, success, source, ts
		 FROM observations WHERE fingerprint = ? AND ts >= ? ORDER BY ts ASC`,
		fingerprint, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: query observations for %s: %v", ErrUnavailable, fingerprint, err)
	}
	return scanObservations(rows)
}

// ByCategory returns a category's observations since the cutoff,
// ordered by ascending timestamp, keeping the most recent limit entries.
func (s *DuckDBStore) ByCategory(ctx context.Context, category string, since time.Time, limit int) ([]pattern.Observation, error) {
	q := `SELECT id, hook_type, emotion, pacing, cta_type, pain, category, event_type, success, source, ts
	      FROM observations WHERE category = ? AND ts >= ? ORDER BY ts ASC`
	args := []any{category, since.UTC()}
	if limit > 0 {
		// Keep the tail of the window: newest limit rows, in ascending order.
		q = `SELECT * FROM (
		       SELECT id, hook_type, emotion, pacing, cta_type, pain, category, event_type, success, source, ts
		       FROM observations WHERE category = ? AND ts >= ? ORDER BY ts DESC LIMIT ?
		     ) ORDER BY ts ASC`
		args = append(args, limit)
	}
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query observations for category %s: %v", ErrUnavailable, category, err)
	}
	return scanObservations(rows)
}

// Close closes the underlying database.
func (s *DuckDBStore) Close() error {
	return s.conn.Close()
}

func scanObservations(rows *sql.Rows) ([]pattern.Observation, error) {
	defer func() { _ = rows.Close() }()
	var out []pattern.Observation
	for rows.Next() {
		var (
			o   pattern.Observation
			src int
		)
		if err := rows.Scan(&o.ID, &o.Pattern.Hook, &o.Pattern.Emotion, &o.Pattern.Pacing,
			&o.Pattern.CTA, &o.Pattern.Pain, &o.Pattern.Category,
			&o.EventType, &o.Success, &src, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		o.Source = pattern.Source(src)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate observation rows: %v", ErrUnavailable, err)
	}
	return out, nil
}
