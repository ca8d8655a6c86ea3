// Package sqlite keeps a durable journal of orchestration runs: which steps
// ran, which modules were invoked and how they fared, and which solutions
// exploration produced. The run directory stays the source of truth for
// headers; the journal is history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/forsyde/idesyde-orchestrator/internal/events"
)

// MemoryPath opens a private in-memory journal (useful for tests).
const MemoryPath = ":memory:"

// Fixed-width UTC timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal implements events.Recorder on top of SQLite.
type Journal struct {
	db *sql.DB
}

var _ events.Recorder = (*Journal)(nil)

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores the raw event and updates the run, step, invocation and
// solution tables it concerns.
func (j *Journal) Record(ctx context.Context, event *events.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := event.Timestamp.UTC().Format(timeLayout)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, run_id, type, severity, timestamp, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.RunID, string(event.Type), string(event.Severity), ts, event.Message, string(data)); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := applyEvent(ctx, tx, event, ts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}
	return nil
}

func applyEvent(ctx context.Context, tx *sql.Tx, event *events.Event, ts string) error {
	if event.Type == events.EventTypeRunStarted {
		data, err := events.DataAs[events.RunData](event)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, run_dir, started_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET run_dir = excluded.run_dir, started_at = excluded.started_at
		`, event.RunID, data.RunDir, ts); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return nil
	}

	// Anything else may arrive for a run whose start was not journaled.
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (id, run_dir, started_at) VALUES (?, '', ?)
	`, event.RunID, ts); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	switch event.Type {
	case events.EventTypeRunCompleted:
		data, err := events.DataAs[events.RunData](event)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE runs
			SET completed_at = ?, success = ?, error = ?, steps = ?, identified = ?, dominant = ?, solutions = ?
			WHERE id = ?
		`, ts, data.Success, data.Error, data.Steps, data.Identified, data.Dominant, data.Solutions, event.RunID); err != nil {
			return fmt.Errorf("failed to complete run: %w", err)
		}

	case events.EventTypeStepCompleted:
		data, err := events.DataAs[events.StepData](event)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO identification_steps (run_id, step, new_headers, total, completed_at)
			VALUES (?, ?, ?, ?, ?)
		`, event.RunID, data.Step, data.NewHeaders, data.Total, ts); err != nil {
			return fmt.Errorf("failed to record step: %w", err)
		}

	case events.EventTypeModuleInvoked, events.EventTypeModuleFailed:
		data, err := events.DataAs[events.ModuleInvocationData](event)
		if err != nil {
			return err
		}
		failed := event.Type == events.EventTypeModuleFailed
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO module_invocations (run_id, step, module_id, headers, exit_code, duration_ms, failed, error, invoked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, event.RunID, data.Step, data.ModuleID, data.Headers, data.ExitCode, data.DurationMs, failed, data.Error, ts); err != nil {
			return fmt.Errorf("failed to record invocation: %w", err)
		}

	case events.EventTypeSolutionFound:
		data, err := events.DataAs[events.SolutionData](event)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO solutions (run_id, module_id, idx, category, header_path, found_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, event.RunID, data.ModuleID, data.Index, data.Category, data.HeaderPath, ts); err != nil {
			return fmt.Errorf("failed to record solution: %w", err)
		}
	}
	return nil
}
