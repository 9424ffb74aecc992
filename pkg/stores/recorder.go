package stores

import (
	"context"
	"fmt"

	"github.com/formulary/formulary/pkg/engine"
)

// Recorder persists engine run history into a Store. It implements both
// engine.RunRecorder and engine.EventPublisher, so one instance wired into
// the executor captures run rows, step rows and the event timeline.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// RecordRunStart persists a new run row in its initial state.
func (r *Recorder) RecordRunStart(ctx context.Context, result *engine.RunResult) error {
	return r.store.CreateRun(ctx, &Run{
		ID:        result.RunID,
		PlanID:    result.PlanID,
		Root:      result.Root,
		Status:    string(result.Status),
		StartedAt: result.StartedAt,
	})
}

// RecordStep persists one step's terminal result.
func (r *Recorder) RecordStep(ctx context.Context, runID string, sr *engine.StepResult) error {
	step := &Step{
		RunID:           runID,
		Name:            sr.Name,
		Action:          string(sr.Action),
		Status:          string(sr.Status),
		Output:          sr.Output,
		InstallDuration: sr.InstallDuration.Milliseconds(),
		TestDuration:    sr.TestDuration.Milliseconds(),
	}
	if sr.Error != "" {
		msg := sr.Error
		step.Error = &msg
	}
	if !sr.StartedAt.IsZero() {
		t := sr.StartedAt
		step.StartedAt = &t
	}
	if !sr.CompletedAt.IsZero() {
		t := sr.CompletedAt
		step.CompletedAt = &t
	}
	return r.store.UpsertStep(ctx, step)
}

// RecordRunEnd persists the run's terminal status and summary.
func (r *Recorder) RecordRunEnd(ctx context.Context, result *engine.RunResult) error {
	completed := result.CompletedAt
	var runErr *string
	if s := result.Summarize(); s.Failed > 0 {
		msg := fmt.Sprintf("%d of %d steps failed", s.Failed, s.Total)
		runErr = &msg
	}
	return r.store.UpdateRunStatus(ctx, result.RunID, string(result.Status), &completed, runErr)
}

// Publish appends an execution timeline event.
func (r *Recorder) Publish(ctx context.Context, event engine.Event) error {
	row := &Event{
		Type:      string(event.Type),
		Level:     event.Level,
		Message:   event.Message,
		Timestamp: event.Timestamp,
	}
	if event.RunID != "" {
		v := event.RunID
		row.RunID = &v
	}
	if event.Step != "" {
		v := event.Step
		row.Step = &v
	}
	if event.Phase != "" {
		v := string(event.Phase)
		row.Phase = &v
	}
	return r.store.AppendEvent(ctx, row)
}
