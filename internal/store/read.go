package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoRuns is returned by LatestRun when nothing has been recorded.
var ErrNoRuns = errors.New("no recorded runs")

// Run summarizes one recording run.
type Run struct {
	ID      string `json:"id"`
	Ordinal int64  `json:"ordinal"`
	Label   string `json:"label,omitempty"`
	Values  int    `json:"values"`
}

// Runs returns every run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.ordinal, r.label, COUNT(v.id)
		FROM runs r
		LEFT JOIN recorded_values v ON v.run_id = r.id
		GROUP BY r.id
		ORDER BY r.ordinal ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Ordinal, &r.Label, &r.Values); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently begun run, or ErrNoRuns.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.ordinal, r.label,
			(SELECT COUNT(*) FROM recorded_values v WHERE v.run_id = r.id)
		FROM runs r
		ORDER BY r.ordinal DESC
		LIMIT 1
	`).Scan(&r.ID, &r.Ordinal, &r.Label, &r.Values)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("query latest run: %w", err)
	}
	return r, nil
}

// ListCandidates returns the observations of runID in seq order. An empty
// runID lists every run, ordered by run then seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListCandidates(ctx context.Context, runID string) ([]Candidate, error) {
	query := `
		SELECT v.run_id, v.seq, v.key, v.path, v.value, v.device
		FROM recorded_values v
		JOIN runs r ON r.id = v.run_id
		WHERE (? = '' OR v.run_id = ?)
		ORDER BY r.ordinal ASC, v.seq ASC, v.id ASC
	`
	return s.queryCandidates(ctx, query, runID, runID)
}

// History returns every observation of key across runs, oldest first.
func (s *Store) History(ctx context.Context, key string) ([]Candidate, error) {
	query := `
		SELECT v.run_id, v.seq, v.key, v.path, v.value, v.device
		FROM recorded_values v
		JOIN runs r ON r.id = v.run_id
		WHERE v.key = ?
		ORDER BY r.ordinal ASC, v.seq ASC, v.id ASC
	`
	return s.queryCandidates(ctx, query, key)
}

// LatestValues returns the last recorded value per key within runID.
func (s *Store) LatestValues(ctx context.Context, runID string) (map[string]string, error) {
	candidates, err := s.ListCandidates(ctx, runID)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(candidates))
	for _, c := range candidates {
		values[c.Key] = c.Value
	}
	return values, nil
}

func (s *Store) queryCandidates(ctx context.Context, query string, args ...any) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	out := []Candidate{}
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.RunID, &c.Seq, &c.Key, &c.Path, &c.Value, &c.Device); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}
