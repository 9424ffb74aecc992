package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/formulary/formulary/pkg/stores"
)

// Example demonstrates basic store usage: open, migrate, record a run and
// read it back.
func Example() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: ":memory:",
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	run := &stores.Run{
		ID:        "run-001",
		PlanID:    "plan-001",
		Root:      "hawk-tui",
		Status:    "running",
		StartedAt: time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	completed := time.Now()
	if err := store.UpdateRunStatus(ctx, run.ID, "verified", &completed, nil); err != nil {
		log.Fatal(err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s %s\n", got.Root, got.Status)

	// Output: hawk-tui verified
}

// Example_history demonstrates querying past runs and their steps.
func Example_history() {
	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	run := &stores.Run{
		ID: "run-001", PlanID: "plan-001", Root: "hawk-tui",
		Status: "verified", StartedAt: time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	for _, name := range []string{"chafa", "hawk-tui"} {
		step := &stores.Step{
			RunID: run.ID, Name: name, Action: "install", Status: "verified",
		}
		if err := store.UpsertStep(ctx, step); err != nil {
			log.Fatal(err)
		}
	}

	steps, err := store.ListStepsByRun(ctx, run.ID)
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range steps {
		fmt.Printf("%s: %s\n", s.Name, s.Status)
	}

	// Output:
	// chafa: verified
	// hawk-tui: verified
}
