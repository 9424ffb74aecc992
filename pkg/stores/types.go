package stores

import (
	"context"
	"database/sql"
	"time"
)

// Run is one execution run row. Status values match the engine's run status
// vocabulary: pending, running, verified, failed, cancelled.
type Run struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	Root        string     `json:"root"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Step is one plan step row, keyed by (run_id, name). Status values match
// the engine's step status vocabulary.
type Step struct {
	RunID           string     `json:"run_id"`
	Name            string     `json:"name"`
	Action          string     `json:"action"`
	Status          string     `json:"status"`
	Output          string     `json:"output,omitempty"`
	Error           *string    `json:"error,omitempty"`
	InstallDuration int64      `json:"install_duration_ms"`
	TestDuration    int64      `json:"test_duration_ms"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Event is one append-only timeline event row.
type Event struct {
	ID        int64     `json:"id"`
	RunID     *string   `json:"run_id,omitempty"`
	Step      *string   `json:"step,omitempty"`
	Phase     *string   `json:"phase,omitempty"`
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EventFilter narrows GetEvents queries. Nil fields match everything.
type EventFilter struct {
	RunID *string
	Step  *string
	Level *string
}

// Store defines the interface for the run-history persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id, status string, completedAt *time.Time, runErr *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	ListRunsByRoot(ctx context.Context, root string, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Step operations
	UpsertStep(ctx context.Context, step *Step) error
	GetStep(ctx context.Context, runID, name string) (*Step, error)
	ListStepsByRun(ctx context.Context, runID string) ([]*Step, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, filter EventFilter, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
