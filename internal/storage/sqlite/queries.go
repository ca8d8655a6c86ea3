package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forsyde/idesyde-orchestrator/internal/events"
)

// Run is one journaled orchestration run.
type Run struct {
	ID          string
	RunDir      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Success     *bool
	Error       string
	Steps       int
	Identified  int
	Dominant    int
	Solutions   int
}

// Step is one identification step of a run.
type Step struct {
	RunID       string
	Step        int
	NewHeaders  int
	Total       int
	CompletedAt time.Time
}

// Invocation is one identification module call.
type Invocation struct {
	ID         int64
	RunID      string
	Step       int
	ModuleID   string
	Headers    int
	ExitCode   int
	DurationMs int64
	Failed     bool
	Error      string
	InvokedAt  time.Time
}

// Solution is one solution reported by exploration.
type Solution struct {
	ID         int64
	RunID      string
	ModuleID   string
	Index      int
	Category   string
	HeaderPath string
	FoundAt    time.Time
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// Runs returns the most recent runs first. limit <= 0 means all.
func (j *Journal) Runs(ctx context.Context, limit int) ([]*Run, error) {
	query := `
		SELECT id, run_dir, started_at, completed_at, success, error,
		       steps, identified, dominant, solutions
		FROM runs
		ORDER BY started_at DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var startedAt string
		var completedAt sql.NullString
		var success sql.NullBool

		if err := rows.Scan(
			&run.ID,
			&run.RunDir,
			&startedAt,
			&completedAt,
			&success,
			&run.Error,
			&run.Steps,
			&run.Identified,
			&run.Dominant,
			&run.Solutions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t, err := parseTime(completedAt.String)
			if err != nil {
				return nil, err
			}
			run.CompletedAt = &t
		}
		if success.Valid {
			run.Success = &success.Bool
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// Steps returns the identification steps of a run in order.
func (j *Journal) Steps(ctx context.Context, runID string) ([]*Step, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, step, new_headers, total, completed_at
		FROM identification_steps
		WHERE run_id = ?
		ORDER BY step ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*Step
	for rows.Next() {
		s := &Step{}
		var completedAt string
		if err := rows.Scan(&s.RunID, &s.Step, &s.NewHeaders, &s.Total, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if s.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step rows: %w", err)
	}
	return steps, nil
}

// Invocations returns the module invocations of a run, by step then time.
func (j *Journal) Invocations(ctx context.Context, runID string) ([]*Invocation, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, step, module_id, headers, exit_code, duration_ms, failed, error, invoked_at
		FROM module_invocations
		WHERE run_id = ?
		ORDER BY step ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Invocation
	for rows.Next() {
		inv := &Invocation{}
		var invokedAt string
		if err := rows.Scan(
			&inv.ID,
			&inv.RunID,
			&inv.Step,
			&inv.ModuleID,
			&inv.Headers,
			&inv.ExitCode,
			&inv.DurationMs,
			&inv.Failed,
			&inv.Error,
			&invokedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		if inv.InvokedAt, err = parseTime(invokedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invocation rows: %w", err)
	}
	return out, nil
}

// Solutions returns the solutions of a run in the order they were found.
func (j *Journal) Solutions(ctx context.Context, runID string) ([]*Solution, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, module_id, idx, category, header_path, found_at
		FROM solutions
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query solutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Solution
	for rows.Next() {
		s := &Solution{}
		var foundAt string
		if err := rows.Scan(&s.ID, &s.RunID, &s.ModuleID, &s.Index, &s.Category, &s.HeaderPath, &foundAt); err != nil {
			return nil, fmt.Errorf("failed to scan solution: %w", err)
		}
		if s.FoundAt, err = parseTime(foundAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating solution rows: %w", err)
	}
	return out, nil
}

// Events returns the raw events of a run, oldest first. limit <= 0 means all.
func (j *Journal) Events(ctx context.Context, runID string, limit int) ([]*events.Event, error) {
	query := `
		SELECT id, run_id, type, severity, timestamp, message, data
		FROM events
		WHERE run_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*events.Event
	for rows.Next() {
		e := &events.Event{}
		var eventType, severity, ts, data string
		if err := rows.Scan(&e.ID, &e.RunID, &eventType, &severity, &ts, &e.Message, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = events.EventType(eventType)
		e.Severity = events.EventSeverity(severity)
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("failed to parse event data: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return out, nil
}

// Prune deletes every run (and its rows) except the keep most recent ones.
// It returns the number of runs removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep cannot be negative")
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const stale = `SELECT id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?`
	for _, table := range []string{"events", "identification_steps", "module_invocations", "solutions"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id IN (%s)", table, stale), keep); err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
	}
	result, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM runs WHERE id IN (%s)", stale), keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return int(deleted), nil
}
