package stores

import (
	"context"
	"testing"
	"time"

	"github.com/formulary/formulary/pkg/engine"
)

func TestRecorderRunRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	rec := NewRecorder(store)
	started := time.Now()

	result := &engine.RunResult{
		RunID:     "run-001",
		PlanID:    "plan-001",
		Root:      "hawk-tui",
		Status:    engine.RunRunning,
		StartedAt: started,
	}
	if err := rec.RecordRunStart(ctx, result); err != nil {
		t.Fatalf("failed to record run start: %v", err)
	}

	run, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != string(engine.RunRunning) {
		t.Errorf("status = %q, want %q", run.Status, engine.RunRunning)
	}

	step := &engine.StepResult{
		Name:            "hawk-tui",
		Action:          engine.ActionInstall,
		Status:          engine.StepVerified,
		Output:          "Successfully installed hawk-tui",
		StartedAt:       started,
		CompletedAt:     started.Add(12 * time.Second),
		InstallDuration: 10 * time.Second,
		TestDuration:    2 * time.Second,
	}
	if err := rec.RecordStep(ctx, "run-001", step); err != nil {
		t.Fatalf("failed to record step: %v", err)
	}

	got, err := store.GetStep(ctx, "run-001", "hawk-tui")
	if err != nil {
		t.Fatalf("failed to get step: %v", err)
	}
	if got.InstallDuration != 10000 {
		t.Errorf("install duration = %d ms, want 10000", got.InstallDuration)
	}
	if got.Error != nil {
		t.Errorf("error should be nil for a verified step, got %v", *got.Error)
	}

	result.Status = engine.RunVerified
	result.CompletedAt = started.Add(15 * time.Second)
	result.Steps = []engine.StepResult{*step}
	if err := rec.RecordRunEnd(ctx, result); err != nil {
		t.Fatalf("failed to record run end: %v", err)
	}

	run, err = store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run after end: %v", err)
	}
	if run.Status != string(engine.RunVerified) {
		t.Errorf("status = %q, want %q", run.Status, engine.RunVerified)
	}
	if run.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
	if run.Error != nil {
		t.Errorf("error should be nil for a verified run, got %v", *run.Error)
	}
}

func TestRecorderFailedRunSummarized(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	rec := NewRecorder(store)
	started := time.Now()

	result := &engine.RunResult{
		RunID:     "run-002",
		PlanID:    "plan-002",
		Root:      "hawk-tui",
		Status:    engine.RunRunning,
		StartedAt: started,
	}
	if err := rec.RecordRunStart(ctx, result); err != nil {
		t.Fatalf("failed to record run start: %v", err)
	}

	failed := &engine.StepResult{
		Name:   "hawk-tui",
		Action: engine.ActionInstall,
		Status: engine.StepFailed,
		Error:  "INSTALL_FAILED: pip exited 1",
	}
	if err := rec.RecordStep(ctx, "run-002", failed); err != nil {
		t.Fatalf("failed to record step: %v", err)
	}

	got, err := store.GetStep(ctx, "run-002", "hawk-tui")
	if err != nil {
		t.Fatalf("failed to get step: %v", err)
	}
	if got.Error == nil || *got.Error != "INSTALL_FAILED: pip exited 1" {
		t.Errorf("step error = %v, want the failure message", got.Error)
	}

	result.Status = engine.RunFailed
	result.CompletedAt = started.Add(time.Second)
	result.Steps = []engine.StepResult{*failed}
	if err := rec.RecordRunEnd(ctx, result); err != nil {
		t.Fatalf("failed to record run end: %v", err)
	}

	run, err := store.GetRun(ctx, "run-002")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Error == nil || *run.Error != "1 of 1 steps failed" {
		t.Errorf("run error = %v, want failure summary", run.Error)
	}
}

func TestRecorderPublishesEvents(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	rec := NewRecorder(store)

	result := &engine.RunResult{
		RunID:     "run-003",
		PlanID:    "plan-003",
		Root:      "hawk-tui",
		Status:    engine.RunRunning,
		StartedAt: time.Now(),
	}
	if err := rec.RecordRunStart(ctx, result); err != nil {
		t.Fatalf("failed to record run start: %v", err)
	}

	events := []engine.Event{
		{Type: engine.EventRunStarted, RunID: "run-003", Level: "info", Message: "run started", Timestamp: time.Now()},
		{Type: engine.EventPhaseStarted, RunID: "run-003", Step: "hawk-tui", Phase: engine.PhaseFetch, Level: "info", Message: "fetching source", Timestamp: time.Now()},
	}
	for i, ev := range events {
		if err := rec.Publish(ctx, ev); err != nil {
			t.Fatalf("failed to publish event %d: %v", i, err)
		}
	}

	stored, err := store.GetEvents(ctx, EventFilter{RunID: strPtr("run-003")}, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d events, want 2", len(stored))
	}
	if stored[1].Phase == nil || *stored[1].Phase != "fetch" {
		t.Errorf("second event phase = %v, want fetch", stored[1].Phase)
	}
}
