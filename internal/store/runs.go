package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run kinds
const (
	RunApply = "apply"
	RunClear = "clear"
	RunEdit  = "edit"
)

// Run outcomes
const (
	OutcomeUpdated      = "updated"
	OutcomeUnrecognized = "unrecognized"
	OutcomeFailed       = "failed"
	OutcomeCleared      = "cleared"
)

// StartRun creates a run row and returns it with a fresh ID
func (s *Store) StartRun(kind, root string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Root:      root,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, kind, root, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Kind, run.Root, run.DryRun, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	return run, nil
}

// AddRunResult records the outcome for one file
func (s *Store) AddRunResult(r *RunResult) error {
	_, err := s.db.Exec(`
		INSERT INTO run_results (run_id, path, outcome, rule, detail)
		VALUES (?, ?, ?, ?, ?)
	`, r.RunID, r.Path, r.Outcome, r.Rule, r.Detail)
	if err != nil {
		return fmt.Errorf("failed to add run result: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run
func (s *Store) FinishRun(run *Run) error {
	run.FinishedAt = time.Now()
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, succeeded = ?, skipped = ?, failed = ?
		WHERE id = ?
	`, run.FinishedAt, run.Succeeded, run.Skipped, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.Kind, &r.Root, &r.DryRun, &r.StartedAt, &finished, &r.Succeeded, &r.Skipped, &r.Failed)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, nil
}

const runColumns = `id, kind, COALESCE(root, ''), dry_run, started_at, finished_at, succeeded, skipped, failed`

// GetRun retrieves a run by ID, or nil if it does not exist
func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunResults returns the per-file results of a run, optionally limited to one outcome
func (s *Store) GetRunResults(runID, outcome string) ([]*RunResult, error) {
	query := `SELECT run_id, path, outcome, COALESCE(rule, ''), COALESCE(detail, ''), created_at
		FROM run_results WHERE run_id = ?`
	args := []any{runID}
	if outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()

	var results []*RunResult
	for rows.Next() {
		r := &RunResult{}
		if err := rows.Scan(&r.RunID, &r.Path, &r.Outcome, &r.Rule, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountRuleUsage returns how many updated files each parse rule produced across all runs
func (s *Store) CountRuleUsage() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT rule, COUNT(*) FROM run_results
		WHERE outcome = ? AND COALESCE(rule, '') != ''
		GROUP BY rule
	`, OutcomeUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to count rule usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rule usage: %w", err)
		}
		usage[rule] = n
	}
	return usage, rows.Err()
}

// RunOutcomeCounts returns the number of results per outcome for a run
func (s *Store) RunOutcomeCounts(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT outcome, COUNT(*) FROM run_results
		WHERE run_id = ?
		GROUP BY outcome
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count run outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan run outcome: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
