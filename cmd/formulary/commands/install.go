package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/formulary/formulary/pkg/engine"
	"github.com/formulary/formulary/pkg/envbuild"
	"github.com/formulary/formulary/pkg/fetch"
	"github.com/formulary/formulary/pkg/formula"
	"github.com/formulary/formulary/pkg/stores"
)

func newInstallCommand() *cobra.Command {
	var (
		withOptional    []string
		skipRecommended bool
		dryRun          bool
		testTimeout     time.Duration
		envRoot         string
		cacheDir        string
		catalogDir      string
		dbPath          string
		noPolicy        bool
		policyDirs      []string
		metricsAddr     string
		traceExporter   string
		traceEndpoint   string
	)

	cmd := &cobra.Command{
		Use:   "install <formula.yaml>",
		Short: "Install a formula and its dependencies",
		Long: `Install a formula and its dependencies.

The install pipeline:
  - Parses and schema-validates the formula descriptor
  - Evaluates formula policies (unless --no-policy)
  - Resolves tiered dependencies into a deterministic plan
  - Fetches and integrity-checks the pinned source archive
  - Builds an isolated environment and installs into it
  - Runs the post-install smoke test
  - Prints applicable caveat blocks

Exit status is zero only when every plan step verifies.`,
		Example: `  # Install with defaults
  formulary install hawk-tui.yaml

  # Include an optional dependency, skip recommended ones
  formulary install hawk-tui.yaml --with-optional=ffmpeg --skip-recommended

  # Resolve and print the plan without installing
  formulary install hawk-tui.yaml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := formula.NewParser().ParseFile(args[0])
			if err != nil {
				return err
			}

			if !noPolicy {
				if err := checkPolicy(ctx, f, policyDirs, "install", dryRun); err != nil {
					return err
				}
			}

			catalog, err := loadCatalog(catalogDir)
			if err != nil {
				return err
			}

			system := engine.ExecLookup{}
			resolver := engine.NewResolver(catalog, system, log.Logger)
			plan, err := resolver.Resolve(ctx, f, engine.ResolveOptions{
				WithOptional:    withOptional,
				SkipRecommended: skipRecommended,
			})
			if err != nil {
				return err
			}

			if dryRun {
				if err := printPlan(plan); err != nil {
					return err
				}
				if caveats := engine.RenderCaveats(f, plan, nil); caveats != "" {
					fmt.Printf("\nCaveats:\n%s\n", caveats)
				}
				return nil
			}

			envRoot, err := defaultPath(envRoot, "envs")
			if err != nil {
				return err
			}
			cacheDir, err := defaultPath(cacheDir, "cache")
			if err != nil {
				return err
			}
			dbPath, err := defaultPath(dbPath, "history.db")
			if err != nil {
				return err
			}

			tel, err := setupTelemetry(metricsAddr, traceExporter, traceEndpoint, buildVersion)
			if err != nil {
				return err
			}
			defer tel.Close()
			tel.bus.Subscribe(newProgressPrinter(cmd.OutOrStdout()), nil)

			opts := []engine.ExecutorOption{
				engine.WithTestTimeout(testTimeout),
				engine.WithMetrics(tel.metrics),
			}
			publishers := fanoutPublisher{busPublisher{tel.bus}}

			// History is best effort: a broken store degrades to a warning.
			store, err := openStore(ctx, dbPath)
			if err != nil {
				log.Warn().Err(err).Msg("Run history unavailable")
			} else {
				defer store.Close()
				recorder := stores.NewRecorder(store)
				opts = append(opts, engine.WithRecorder(recorder))
				publishers = append(publishers, recorder)
			}
			opts = append(opts, engine.WithEventPublisher(publishers))

			executor := engine.NewExecutor(
				fetch.NewHTTPFetcher(cacheDir, log.Logger),
				envbuild.NewBuilder(envRoot, log.Logger),
				engine.NewExecRunner(),
				system,
				log.Logger,
				opts...,
			)

			result, err := executor.Execute(ctx, plan)
			if err != nil {
				return err
			}

			if err := printResult(result); err != nil {
				return err
			}
			if caveats := engine.RenderCaveats(f, plan, result); caveats != "" {
				fmt.Printf("\nCaveats:\n%s\n", caveats)
			}

			if result.Status != engine.RunVerified {
				return fmt.Errorf("install of %s did not verify: run %s %s", f.Name, result.RunID, result.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&withOptional, "with-optional", nil, "optional dependency to include (repeatable)")
	cmd.Flags().BoolVar(&skipRecommended, "skip-recommended", false, "exclude recommended dependencies")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and print the plan without installing")
	cmd.Flags().DurationVar(&testTimeout, "test-timeout", engine.DefaultTestTimeout, "smoke test timeout")
	cmd.Flags().StringVar(&envRoot, "env-root", "", "root directory for isolated environments")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "download cache directory")
	cmd.Flags().StringVar(&catalogDir, "catalog", "", "directory of dependency formulas")
	cmd.Flags().StringVar(&dbPath, "db", "", "run-history database path")
	cmd.Flags().BoolVar(&noPolicy, "no-policy", false, "skip policy evaluation")
	cmd.Flags().StringArrayVar(&policyDirs, "policy-dir", nil, "additional policy directory (repeatable)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-listen", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&traceExporter, "trace", "", "trace exporter (stdout or otlp)")
	cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint for --trace=otlp")

	return cmd
}
