package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"towerkeep.ai/internal/protocol"
)

type BatchSummary struct {
	Batches  int
	Cells    int
	Attempts int
}

// Run loads the stored report of runID.
func (s *SQLiteIndex) Run(ctx context.Context, runID string) (protocol.RunReport, error) {
	var r protocol.RunReport
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT raw_json FROM runs WHERE run_id = ?`, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("run %s: not indexed", runID)
	}
	if err != nil {
		return r, err
	}
	err = json.Unmarshal([]byte(raw), &r)
	return r, err
}

// RecentRuns lists run ids, newest first.
func (s *SQLiteIndex) RecentRuns(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY recorded_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Batches(ctx context.Context, runID string) (BatchSummary, error) {
	var b BatchSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(cells),0), COALESCE(SUM(attempts),0) FROM batches WHERE run_id = ?`, runID).
		Scan(&b.Batches, &b.Cells, &b.Attempts)
	return b, err
}

// ElementCounts counts a run's elements by kind.
func (s *SQLiteIndex) ElementCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM elements WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// CatalogDigest returns the stored digest of a catalog row.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	return d, err
}
