package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/formulary/formulary/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		dbPath string
		runID  string
		root   string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past install runs",
		Long: `Show past install runs from the run-history database.

Without flags, lists recent runs newest first. With --run, shows the step
detail of one run.`,
		Example: `  # List recent runs
  formulary history

  # Show one run's steps
  formulary history --run 3f2c...

  # Runs for a single formula
  formulary history --root hawk-tui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPath, err := defaultPath(dbPath, "history.db")
			if err != nil {
				return err
			}

			store, err := openStore(ctx, dbPath)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer store.Close()

			if runID != "" {
				return showRun(cmd, store, runID)
			}

			var runs []*stores.Run
			if root != "" {
				runs, err = store.ListRunsByRoot(ctx, root, limit, 0)
			} else {
				runs, err = store.ListRuns(ctx, limit, 0)
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}
			for _, run := range runs {
				line := fmt.Sprintf("%s  %-10s %-20s %s",
					run.ID, run.Status, run.Root, run.StartedAt.Format(time.RFC3339))
				if run.Error != nil {
					line += "  " + *run.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "run-history database path")
	cmd.Flags().StringVar(&runID, "run", "", "show step detail for one run ID")
	cmd.Flags().StringVar(&root, "root", "", "only runs for this formula")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")

	return cmd
}

func showRun(cmd *cobra.Command, store *stores.SQLiteStore, runID string) error {
	ctx := cmd.Context()

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	steps, err := store.ListStepsByRun(ctx, runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(struct {
			Run   *stores.Run    `json:"run"`
			Steps []*stores.Step `json:"steps"`
		}{run, steps})
	}

	fmt.Printf("Run %s: %s %s (started %s)\n",
		run.ID, run.Root, run.Status, run.StartedAt.Format(time.RFC3339))
	if run.Error != nil {
		fmt.Printf("  error: %s\n", *run.Error)
	}
	for _, step := range steps {
		line := fmt.Sprintf("  %s [%s]: %s", step.Name, step.Action, step.Status)
		if step.InstallDuration > 0 || step.TestDuration > 0 {
			line += fmt.Sprintf(" (install %dms, test %dms)", step.InstallDuration, step.TestDuration)
		}
		if step.Error != nil {
			line += " - " + *step.Error
		}
		fmt.Println(line)
	}
	return nil
}
