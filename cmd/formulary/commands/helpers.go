package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/formulary/formulary/pkg/engine"
	"github.com/formulary/formulary/pkg/formula"
	"github.com/formulary/formulary/pkg/policy"
	"github.com/formulary/formulary/pkg/stores"
)

// dataDir returns the per-user state directory, creating it if needed.
func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	dir := filepath.Join(home, ".formulary")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

func defaultPath(flag, sub string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sub), nil
}

// loadCatalog parses every .yaml/.yml formula under dir into a catalog keyed
// by formula name. An empty dir flag yields an empty catalog; dependencies
// then resolve against the system only.
func loadCatalog(dir string) (engine.Catalog, error) {
	catalog := engine.Catalog{}
	if dir == "" {
		return catalog, nil
	}

	parser := formula.NewParser()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		f, err := parser.ParseFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping invalid catalog formula")
			return nil
		}
		catalog[f.Name] = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog from %s: %w", dir, err)
	}

	log.Debug().Int("formulas", len(catalog)).Str("dir", dir).Msg("Catalog loaded")
	return catalog, nil
}

// checkPolicy evaluates formula policies and returns an error when a
// blocking violation is found. Warnings are logged.
func checkPolicy(ctx context.Context, f *formula.Formula, policyDirs []string, operation string, dryRun bool) error {
	eng, err := policy.NewEngine(log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(policyDirs) > 0 {
		if err := eng.LoadPolicies(ctx, policyDirs); err != nil {
			return err
		}
	}

	var result *policy.Result
	if operation == "install" {
		result, err = eng.EvaluateForInstall(ctx, f, dryRun)
	} else {
		result, err = eng.Evaluate(ctx, f)
	}
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	for _, w := range result.Warnings {
		log.Warn().Msg(w)
	}
	for _, v := range result.Violations {
		if v.Severity == policy.SeverityError {
			log.Error().Str("policy", v.Policy).Msg(v.Message)
		} else {
			log.Warn().Str("policy", v.Policy).Msg(v.Message)
		}
	}

	if !result.Allowed {
		return fmt.Errorf("formula %s rejected by policy (%d violations)", f.Name, len(result.Violations))
	}
	return nil
}

// openStore opens (and migrates) the run-history store. Failures are
// reported to the caller as a warning candidate, never fatal.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// printPlan renders an install plan as text or JSON.
func printPlan(plan *engine.InstallPlan) error {
	if jsonOutput {
		return printJSON(plan)
	}

	fmt.Printf("Plan %s for %s (%d steps):\n", plan.ID, plan.Root, len(plan.Steps))
	for i, step := range plan.Steps {
		detail := string(step.Tier)
		if step.BuildOnly {
			detail += ", build-only"
		}
		if len(step.DependsOn) > 0 {
			detail += ", after " + strings.Join(step.DependsOn, ", ")
		}
		fmt.Printf("  %d. %s [%s] (%s)\n", i+1, step.Name, step.Action, detail)
	}
	for _, name := range plan.MissingRecommended {
		fmt.Printf("  recommended %s is unavailable and will be skipped\n", name)
	}
	for _, name := range plan.SkippedRecommended {
		fmt.Printf("  recommended %s skipped by request\n", name)
	}
	for _, name := range plan.UnselectedOptional {
		fmt.Printf("  optional %s not selected (use --with-optional=%s)\n", name, name)
	}
	return nil
}

// printResult renders a run result as text or JSON.
func printResult(result *engine.RunResult) error {
	if jsonOutput {
		return printJSON(result)
	}

	fmt.Printf("Run %s: %s\n", result.RunID, result.Status)
	for _, step := range result.Steps {
		line := fmt.Sprintf("  %s [%s]: %s", step.Name, step.Action, step.Status)
		if step.Error != "" {
			line += " - " + step.Error
		}
		fmt.Println(line)
	}
	s := result.Summarize()
	fmt.Printf("%d verified, %d failed, %d skipped, %d cancelled\n",
		s.Verified, s.Failed, s.Skipped, s.Cancelled)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
