// Package engine provides the core types and the resolution and execution
// machinery of the Formulary install engine.
//
// # Overview
//
// Formulary installs software described by declarative formulas. The engine
// operates through a 4-phase workflow:
//
//  1. Parse - Load and validate the formula descriptor (pkg/formula)
//  2. Resolve - Compute an ordered install plan from the dependency graph (Resolver)
//  3. Execute - Run the plan step by step through its lifecycle phases (Executor)
//  4. Report - Render caveats and summarize the run (RenderCaveats, Summary)
//
// # Core Domain Types
//
// The package defines several fundamental types that represent the execution
// model:
//
//   - InstallPlan: An ordered sequence of plan steps plus tier decisions
//   - PlanStep: One unit of work, either an install or a use-system step
//   - RunResult: The outcome of executing one plan, with per-step results
//   - StepResult: The terminal state of one executed step
//   - Event: Timeline events during execution
//
// # Collaborator Interfaces
//
// The executor is wired from narrow collaborator interfaces:
//
//   - SystemPackages: Answers availability queries for opaque system packages
//   - Fetcher: Retrieves and integrity-checks pinned source artifacts
//   - EnvironmentBuilder: Constructs isolated runtime environments
//   - CommandRunner: Executes install and test commands
//   - EventPublisher: Receives execution timeline events
//   - RunRecorder: Persists run history
//
// # Step Lifecycle
//
// Each install step moves through Pending -> Installing -> Testing and ends
// in Verified or Failed. Steps whose dependency failed are Skipped, and
// cancellation between phases marks the remaining steps Cancelled; a phase
// already in flight always finishes.
//
// # Error Classification
//
// Resolution failures are ResolutionError values (MISSING_REQUIRED, CYCLE);
// execution failures are LifecycleError values (INSTALL_FAILED, TEST_FAILED).
// Use the helper predicates to inspect them:
//
//	if engine.IsCycle(err) {
//	    // report the dependency cycle
//	}
//
// # Example Usage
//
//	resolver := engine.NewResolver(catalog, system, logger)
//	plan, err := resolver.Resolve(ctx, f, engine.ResolveOptions{})
//	if err != nil {
//	    return err
//	}
//
//	exec := engine.NewExecutor(fetcher, builder, engine.NewExecRunner(), system, logger)
//	result, err := exec.Execute(ctx, plan)
//	if err != nil {
//	    return err
//	}
//	fmt.Print(engine.RenderCaveats(f, plan, result))
package engine
