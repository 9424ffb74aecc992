package engine

import (
	"context"

	"github.com/formulary/formulary/pkg/envbuild"
	"github.com/formulary/formulary/pkg/formula"
)

// Catalog maps dependency names to formulas that can be installed
// independently. Dependencies absent from the catalog are opaque system
// package references.
type Catalog map[string]*formula.Formula

// SystemPackages answers availability queries for opaque system packages.
// Implementations are read-only collaborators; the resolver caches answers
// for the duration of one resolution call only, since availability can change
// between runs.
type SystemPackages interface {
	// Has reports whether the named package is available on the system.
	Has(ctx context.Context, name string) (bool, error)
}

// Fetcher retrieves and integrity-checks a pinned source artifact before the
// environment builder consumes it. A digest mismatch is fatal and surfaced
// before any install phase begins.
type Fetcher interface {
	// Fetch returns a local path to the verified artifact.
	Fetch(ctx context.Context, src formula.Source) (string, error)
}

// EnvironmentBuilder constructs the isolated runtime environment one
// descriptor installs into.
type EnvironmentBuilder interface {
	// Build creates (or fully replaces) the environment for the formula.
	Build(ctx context.Context, f *formula.Formula) (*envbuild.Environment, error)
}

// Command is one process invocation run by the executor.
type Command struct {
	// Argv is the command and its arguments.
	Argv []string

	// Dir is the working directory; empty means inherit.
	Dir string

	// Env is the extra environment, appended to the parent's.
	Env []string
}

// CommandResult is the outcome of a completed process.
type CommandResult struct {
	// ExitCode is the process exit code; zero on success.
	ExitCode int

	// Output is the combined stdout and stderr.
	Output string
}

// CommandRunner executes commands on behalf of the lifecycle executor. The
// executor serializes all commands touching a single environment.
type CommandRunner interface {
	// Run executes the command and waits for it to finish. A non-zero exit
	// is reported through CommandResult.ExitCode with a nil error; the error
	// return is reserved for failures to run at all and for context
	// expiry.
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}

// EventPublisher receives execution timeline events. Publishing must not
// block the executor; implementations buffer or drop.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// RunRecorder persists run and step state transitions. Recorder failures are
// logged and never fail an install.
type RunRecorder interface {
	// RecordRunStart persists a new run in its initial state.
	RecordRunStart(ctx context.Context, result *RunResult) error

	// RecordStep persists one step's terminal result.
	RecordStep(ctx context.Context, runID string, step *StepResult) error

	// RecordRunEnd persists the run's terminal status and summary.
	RecordRunEnd(ctx context.Context, result *RunResult) error
}
