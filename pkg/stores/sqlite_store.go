package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded migration files.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateRun inserts a new run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, plan_id, root, status, started_at, completed_at, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.PlanID, run.Root, run.Status,
		run.StartedAt, run.CompletedAt, run.Error,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, plan_id, root, status, started_at, completed_at, error, created_at, updated_at
		FROM runs WHERE id = ?
	`
	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.PlanID, &run.Root, &run.Status,
		&run.StartedAt, &run.CompletedAt, &run.Error,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// UpdateRunStatus updates a run's status, completion time and error message.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id, status string, completedAt *time.Time, runErr *string) error {
	query := `
		UPDATE runs SET status = ?, completed_at = ?, error = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, status, completedAt, runErr, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListRuns retrieves runs ordered by start time, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, plan_id, root, status, started_at, completed_at, error, created_at, updated_at
		FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListRunsByRoot retrieves runs for one root formula, newest first.
func (s *SQLiteStore) ListRunsByRoot(ctx context.Context, root string, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, plan_id, root, status, started_at, completed_at, error, created_at, updated_at
		FROM runs WHERE root = ? ORDER BY started_at DESC LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, root, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(
			&run.ID, &run.PlanID, &run.Root, &run.Status,
			&run.StartedAt, &run.CompletedAt, &run.Error,
			&run.CreatedAt, &run.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and, via cascade, its steps and events.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpsertStep inserts or replaces a step row keyed by (run_id, name).
func (s *SQLiteStore) UpsertStep(ctx context.Context, step *Step) error {
	query := `
		INSERT INTO steps (run_id, name, action, status, output, error,
			install_duration_ms, test_duration_ms, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			action = excluded.action,
			status = excluded.status,
			output = excluded.output,
			error = excluded.error,
			install_duration_ms = excluded.install_duration_ms,
			test_duration_ms = excluded.test_duration_ms,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if step.CreatedAt.IsZero() {
		step.CreatedAt = now
	}
	step.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		step.RunID, step.Name, step.Action, step.Status, step.Output, step.Error,
		step.InstallDuration, step.TestDuration,
		step.StartedAt, step.CompletedAt, step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert step: %w", err)
	}
	return nil
}

// GetStep retrieves one step of a run by name.
func (s *SQLiteStore) GetStep(ctx context.Context, runID, name string) (*Step, error) {
	query := `
		SELECT run_id, name, action, status, output, error,
			install_duration_ms, test_duration_ms, started_at, completed_at, created_at, updated_at
		FROM steps WHERE run_id = ? AND name = ?
	`
	step := &Step{}
	err := s.db.QueryRowContext(ctx, query, runID, name).Scan(
		&step.RunID, &step.Name, &step.Action, &step.Status, &step.Output, &step.Error,
		&step.InstallDuration, &step.TestDuration,
		&step.StartedAt, &step.CompletedAt, &step.CreatedAt, &step.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("step %s/%s: %w", runID, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// ListStepsByRun retrieves all steps of a run in insertion order.
func (s *SQLiteStore) ListStepsByRun(ctx context.Context, runID string) ([]*Step, error) {
	query := `
		SELECT run_id, name, action, status, output, error,
			install_duration_ms, test_duration_ms, started_at, completed_at, created_at, updated_at
		FROM steps WHERE run_id = ? ORDER BY rowid
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step := &Step{}
		if err := rows.Scan(
			&step.RunID, &step.Name, &step.Action, &step.Status, &step.Output, &step.Error,
			&step.InstallDuration, &step.TestDuration,
			&step.StartedAt, &step.CompletedAt, &step.CreatedAt, &step.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// AppendEvent appends an event to the timeline. The row ID is written back
// into event.ID.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (run_id, step, phase, type, level, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = "info"
	}

	result, err := s.db.ExecContext(ctx, query,
		event.RunID, event.Step, event.Phase,
		event.Type, event.Level, event.Message, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}
	event.ID = id
	return nil
}

// GetEvents retrieves timeline events matching the filter, oldest first.
func (s *SQLiteStore) GetEvents(ctx context.Context, filter EventFilter, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, run_id, step, phase, type, level, message, timestamp
		FROM events WHERE 1=1
	`
	args := []interface{}{}

	if filter.RunID != nil {
		query += " AND run_id = ?"
		args = append(args, *filter.RunID)
	}
	if filter.Step != nil {
		query += " AND step = ?"
		args = append(args, *filter.Step)
	}
	if filter.Level != nil {
		query += " AND level = ?"
		args = append(args, *filter.Level)
	}

	query += " ORDER BY id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		if err := rows.Scan(
			&event.ID, &event.RunID, &event.Step, &event.Phase,
			&event.Type, &event.Level, &event.Message, &event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
