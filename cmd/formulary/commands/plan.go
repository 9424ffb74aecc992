package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/formulary/formulary/pkg/engine"
	"github.com/formulary/formulary/pkg/formula"
)

func newPlanCommand() *cobra.Command {
	var (
		withOptional    []string
		skipRecommended bool
		catalogDir      string
	)

	cmd := &cobra.Command{
		Use:   "plan <formula.yaml>",
		Short: "Resolve a formula into an install plan",
		Long: `Resolve a formula's dependency graph into an ordered install plan and
print it without installing anything.

The plan lists one step per package, dependencies before dependents, with
ties broken by declaration order. Recommended dependencies that are absent
are noted; optional dependencies are included only when selected.`,
		Example: `  # Print the plan for a formula
  formulary plan hawk-tui.yaml

  # Plan with an optional dependency selected
  formulary plan hawk-tui.yaml --with-optional=ffmpeg

  # Machine-readable output
  formulary plan hawk-tui.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := formula.NewParser().ParseFile(args[0])
			if err != nil {
				return err
			}

			catalog, err := loadCatalog(catalogDir)
			if err != nil {
				return err
			}

			resolver := engine.NewResolver(catalog, engine.ExecLookup{}, log.Logger)
			plan, err := resolver.Resolve(ctx, f, engine.ResolveOptions{
				WithOptional:    withOptional,
				SkipRecommended: skipRecommended,
			})
			if err != nil {
				return err
			}

			if err := printPlan(plan); err != nil {
				return err
			}
			if caveats := engine.RenderCaveats(f, plan, nil); caveats != "" {
				fmt.Printf("\nCaveats:\n%s\n", caveats)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&withOptional, "with-optional", nil, "optional dependency to include (repeatable)")
	cmd.Flags().BoolVar(&skipRecommended, "skip-recommended", false, "exclude recommended dependencies")
	cmd.Flags().StringVar(&catalogDir, "catalog", "", "directory of dependency formulas")

	return cmd
}
