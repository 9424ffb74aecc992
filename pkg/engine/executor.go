package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formulary/formulary/pkg/envbuild"
	"github.com/formulary/formulary/pkg/formula"
	"github.com/formulary/formulary/pkg/telemetry"
)

// DefaultTestTimeout bounds the test phase when no timeout is configured.
const DefaultTestTimeout = 2 * time.Minute

// Executor runs install plans. Steps execute sequentially in plan order;
// within a step the phases are fetch, build, install, test. A step whose
// dependency failed is skipped, and cancellation takes effect between phases:
// the phase in flight always finishes.
type Executor struct {
	fetcher Fetcher
	builder EnvironmentBuilder
	runner  CommandRunner
	system  SystemPackages
	logger  zerolog.Logger
	tracer  trace.Tracer

	events      EventPublisher
	recorder    RunRecorder
	metrics     *telemetry.Metrics
	testTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithEventPublisher wires an execution event sink.
func WithEventPublisher(p EventPublisher) ExecutorOption {
	return func(e *Executor) { e.events = p }
}

// WithRecorder wires run-history persistence. Recorder failures are logged,
// never fatal.
func WithRecorder(r RunRecorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithMetrics wires Prometheus metrics collection.
func WithMetrics(m *telemetry.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTestTimeout sets the per-step test phase timeout.
func WithTestTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.testTimeout = d
		}
	}
}

// NewExecutor creates an executor over the given collaborators.
func NewExecutor(fetcher Fetcher, builder EnvironmentBuilder, runner CommandRunner, system SystemPackages, logger zerolog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		fetcher:     fetcher,
		builder:     builder,
		runner:      runner,
		system:      system,
		logger:      logger.With().Str("component", "executor").Logger(),
		tracer:      otel.Tracer("formulary/engine"),
		testTimeout: DefaultTestTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the plan to completion and returns the run result. The
// returned error is reserved for setup problems; per-step failures are
// reported through step statuses, and the run as a whole is Verified only
// when every step is.
func (e *Executor) Execute(ctx context.Context, plan *InstallPlan) (*RunResult, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return nil, fmt.Errorf("executor: empty plan")
	}

	runID := uuid.New().String()
	result := &RunResult{
		RunID:     runID,
		PlanID:    plan.ID,
		Root:      plan.Root,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}

	logger := e.logger.With().Str("run_id", runID).Str("root", plan.Root).Logger()
	logger.Info().Int("steps", len(plan.Steps)).Msg("starting install run")

	ctx, span := e.tracer.Start(ctx, "run.execute",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("plan.id", plan.ID),
			attribute.String("formula.name", plan.Root),
		))
	defer span.End()

	if e.metrics != nil {
		e.metrics.RecordRunStarted(plan.Root)
	}
	e.record(ctx, func() error { return e.recorder.RecordRunStart(ctx, result) })
	e.publish(ctx, Event{
		Type:    EventRunStarted,
		RunID:   runID,
		Message: fmt.Sprintf("install run started for %s", plan.Root),
		Level:   "info",
	})

	failed := make(map[string]bool)
	cancelled := false

	for i := range plan.Steps {
		step := &plan.Steps[i]

		var sr StepResult
		switch {
		case cancelled || ctx.Err() != nil:
			cancelled = true
			sr = StepResult{
				Name:        step.Name,
				Action:      step.Action,
				Status:      StepCancelled,
				StartedAt:   time.Now(),
				CompletedAt: time.Now(),
			}
		case e.dependencyFailed(step, failed):
			sr = StepResult{
				Name:        step.Name,
				Action:      step.Action,
				Status:      StepSkipped,
				StartedAt:   time.Now(),
				CompletedAt: time.Now(),
			}
			logger.Warn().Str("step", step.Name).Msg("skipping step, dependency failed")
		default:
			sr = e.executeStep(ctx, runID, step, logger)
		}

		if sr.Err != nil {
			sr.Error = sr.Err.Error()
		}
		// A skipped step blocks its dependents the same way a failed one
		// does: nothing was installed for it.
		if sr.Status == StepFailed || sr.Status == StepSkipped {
			failed[step.Name] = true
		}
		if e.metrics != nil {
			e.metrics.RecordStepExecution(string(step.Action), string(sr.Status))
		}
		e.record(ctx, func() error { return e.recorder.RecordStep(ctx, runID, &sr) })
		e.publish(ctx, Event{
			Type:    EventStepStatusChanged,
			RunID:   runID,
			Step:    step.Name,
			Status:  sr.Status,
			Message: fmt.Sprintf("step %s is %s", step.Name, sr.Status),
			Level:   eventLevel(sr.Status),
		})

		result.Steps = append(result.Steps, sr)
	}

	result.CompletedAt = time.Now()
	result.Status = runStatus(result, cancelled)

	span.SetAttributes(attribute.String("run.status", string(result.Status)))
	if result.Status == RunVerified {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(result.Status))
	}

	if e.metrics != nil {
		e.metrics.RecordRunCompleted(string(result.Status), result.CompletedAt.Sub(result.StartedAt))
	}
	e.record(ctx, func() error { return e.recorder.RecordRunEnd(ctx, result) })
	e.publish(ctx, Event{
		Type:    EventRunCompleted,
		RunID:   runID,
		Message: fmt.Sprintf("install run %s", result.Status),
		Level:   eventLevelRun(result.Status),
	})

	logger.Info().
		Str("status", string(result.Status)).
		Dur("duration", result.CompletedAt.Sub(result.StartedAt)).
		Msg("install run finished")

	return result, nil
}

// dependencyFailed reports whether any of the step's dependencies ended in a
// non-verified state.
func (e *Executor) dependencyFailed(step *PlanStep, failed map[string]bool) bool {
	for _, dep := range step.DependsOn {
		if failed[dep] {
			return true
		}
	}
	return false
}

// executeStep runs one step through its lifecycle and returns its terminal
// result. The step status machine is Pending -> Installing -> Testing ->
// {Verified, Failed}.
func (e *Executor) executeStep(ctx context.Context, runID string, step *PlanStep, logger zerolog.Logger) StepResult {
	sr := StepResult{
		Name:      step.Name,
		Action:    step.Action,
		Status:    StepPending,
		StartedAt: time.Now(),
	}

	ctx, span := e.tracer.Start(ctx, "step.execute",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.name", step.Name),
			attribute.String("step.action", string(step.Action)),
		))
	defer span.End()

	switch step.Action {
	case ActionUseSystem:
		e.executeUseSystem(ctx, step, &sr, logger)
	case ActionInstall:
		e.executeInstall(ctx, runID, step, &sr, logger)
	default:
		sr.Status = StepFailed
		sr.Err = fmt.Errorf("unknown step action %q", step.Action)
	}

	sr.CompletedAt = time.Now()
	span.SetAttributes(attribute.String("step.status", string(sr.Status)))
	if sr.Err != nil {
		span.RecordError(sr.Err)
		span.SetStatus(codes.Error, sr.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return sr
}

// executeUseSystem re-verifies that the system package is still available.
// Availability can change between resolution and execution.
func (e *Executor) executeUseSystem(ctx context.Context, step *PlanStep, sr *StepResult, logger zerolog.Logger) {
	sr.Status = StepInstalling
	ok, err := e.system.Has(ctx, step.Name)
	if err != nil {
		sr.Status = StepFailed
		sr.Err = NewInstallFailedError(step.Name, fmt.Errorf("system package query: %w", err))
		return
	}
	if !ok {
		sr.Status = StepFailed
		sr.Err = NewInstallFailedError(step.Name, fmt.Errorf("system package no longer available"))
		return
	}
	logger.Debug().Str("step", step.Name).Msg("system package verified")
	sr.Status = StepVerified
}

// executeInstall runs the fetch, build, install and test phases for one
// formula. The run context is checked between phases only; a phase that has
// started runs on a detached context and finishes even if the run is
// cancelled.
func (e *Executor) executeInstall(ctx context.Context, runID string, step *PlanStep, sr *StepResult, logger zerolog.Logger) {
	f := step.Formula
	if f == nil {
		sr.Status = StepFailed
		sr.Err = NewInstallFailedError(step.Name, fmt.Errorf("install step has no formula"))
		return
	}

	phaseCtx := context.WithoutCancel(ctx)
	installStart := time.Now()
	sr.Status = StepInstalling

	// Fetch phase.
	var artifact string
	err := e.runPhase(ctx, runID, step.Name, PhaseFetch, func() error {
		var ferr error
		artifact, ferr = e.fetcher.Fetch(phaseCtx, f.Source)
		return ferr
	})
	if err != nil {
		sr.Status = StepFailed
		sr.Err = &LifecycleError{Code: CodeInstallFailed, Formula: f.Name, Phase: PhaseFetch, Err: err}
		sr.InstallDuration = time.Since(installStart)
		return
	}
	if ctx.Err() != nil {
		sr.Status = StepCancelled
		sr.InstallDuration = time.Since(installStart)
		return
	}

	// Build phase.
	var env *envbuild.Environment
	err = e.runPhase(ctx, runID, step.Name, PhaseBuild, func() error {
		var berr error
		env, berr = e.builder.Build(phaseCtx, f)
		return berr
	})
	if err != nil {
		sr.Status = StepFailed
		sr.Err = &LifecycleError{Code: CodeInstallFailed, Formula: f.Name, Phase: PhaseBuild, Err: err}
		sr.InstallDuration = time.Since(installStart)
		return
	}
	if ctx.Err() != nil {
		sr.Status = StepCancelled
		sr.InstallDuration = time.Since(installStart)
		return
	}

	// Install phase.
	err = e.runPhase(ctx, runID, step.Name, PhaseInstall, func() error {
		return e.installArtifact(phaseCtx, f, env, artifact, sr)
	})
	sr.InstallDuration = time.Since(installStart)
	if err != nil {
		sr.Status = StepFailed
		sr.Err = err
		return
	}
	if ctx.Err() != nil {
		sr.Status = StepCancelled
		return
	}

	// Test phase.
	sr.Status = StepTesting
	e.publish(ctx, Event{
		Type:    EventStepStatusChanged,
		RunID:   runID,
		Step:    step.Name,
		Status:  StepTesting,
		Message: fmt.Sprintf("step %s is testing", step.Name),
		Level:   "info",
	})

	testStart := time.Now()
	err = e.runPhase(ctx, runID, step.Name, PhaseTest, func() error {
		return e.runTest(phaseCtx, f, env, sr)
	})
	sr.TestDuration = time.Since(testStart)
	if err != nil {
		sr.Status = StepFailed
		sr.Err = err
		return
	}

	logger.Info().
		Str("step", step.Name).
		Dur("install", sr.InstallDuration).
		Dur("test", sr.TestDuration).
		Msg("step verified")
	sr.Status = StepVerified
}

// installArtifact applies the formula's install strategy inside the
// environment.
func (e *Executor) installArtifact(ctx context.Context, f *formula.Formula, env *envbuild.Environment, artifact string, sr *StepResult) error {
	var cmd Command
	switch f.Install {
	case formula.StrategyIsolatedEnvironment:
		cmd = Command{
			Argv: []string{filepath.Join(env.BinDir, "pip"), "install", "--no-input", artifact},
			Dir:  env.Root,
		}
	case formula.StrategyDirectCopy:
		cmd = Command{
			Argv: []string{"install", "-m", "0755", artifact, filepath.Join(env.BinDir, f.Name)},
			Dir:  env.Root,
		}
	case formula.StrategyCompiledBuild:
		return NewInstallFailedError(f.Name, fmt.Errorf("install strategy %q is not supported", f.Install))
	default:
		return NewInstallFailedError(f.Name, fmt.Errorf("unknown install strategy %q", f.Install))
	}

	res, err := e.runner.Run(ctx, cmd)
	sr.Output = appendOutput(sr.Output, res.Output)
	if err != nil {
		return NewInstallFailedError(f.Name, err).WithOutput(res.Output)
	}
	if res.ExitCode != 0 {
		return NewInstallFailedError(f.Name, fmt.Errorf("install command exited %d", res.ExitCode)).
			WithExitCode(res.ExitCode).
			WithOutput(res.Output)
	}
	return nil
}

// runTest executes the formula's smoke test inside the environment, bounded
// by the configured timeout. A formula with no test verifies on install
// alone.
func (e *Executor) runTest(ctx context.Context, f *formula.Formula, env *envbuild.Environment, sr *StepResult) error {
	if f.Test == nil || len(f.Test.Command) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.testTimeout)
	defer cancel()

	argv := make([]string, len(f.Test.Command))
	copy(argv, f.Test.Command)
	// Bare command names resolve inside the environment.
	if !strings.ContainsRune(argv[0], os.PathSeparator) {
		argv[0] = filepath.Join(env.BinDir, argv[0])
	}

	cmd := Command{
		Argv: argv,
		Dir:  env.Root,
		Env:  []string{"PATH=" + env.BinDir + string(os.PathListSeparator) + os.Getenv("PATH")},
	}

	res, err := e.runner.Run(ctx, cmd)
	sr.Output = appendOutput(sr.Output, res.Output)
	if err != nil {
		le := NewTestFailedError(f.Name, err).WithOutput(res.Output)
		if ctx.Err() == context.DeadlineExceeded {
			le.Timeout = true
		}
		return le
	}
	if res.ExitCode != 0 {
		return NewTestFailedError(f.Name, fmt.Errorf("test command exited %d", res.ExitCode)).
			WithExitCode(res.ExitCode).
			WithOutput(res.Output)
	}
	if f.Test.ExpectOutput != "" && !strings.Contains(res.Output, f.Test.ExpectOutput) {
		return NewTestFailedError(f.Name, fmt.Errorf("test output does not contain %q", f.Test.ExpectOutput)).
			WithOutput(res.Output)
	}
	return nil
}

// runPhase wraps one lifecycle phase with its span and timeline events.
func (e *Executor) runPhase(ctx context.Context, runID, step string, phase Phase, fn func() error) error {
	_, span := e.tracer.Start(ctx, "phase."+string(phase),
		trace.WithAttributes(
			attribute.String("step.name", step),
			attribute.String("phase", string(phase)),
		))
	defer span.End()

	e.publish(ctx, Event{
		Type:    EventPhaseStarted,
		RunID:   runID,
		Step:    step,
		Phase:   phase,
		Message: fmt.Sprintf("phase %s started for %s", phase, step),
		Level:   "info",
	})

	start := time.Now()
	err := fn()

	if e.metrics != nil {
		e.metrics.RecordPhaseDuration(string(phase), time.Since(start))
	}
	level := "info"
	if err != nil {
		level = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	e.publish(ctx, Event{
		Type:    EventPhaseCompleted,
		RunID:   runID,
		Step:    step,
		Phase:   phase,
		Message: fmt.Sprintf("phase %s completed for %s", phase, step),
		Level:   level,
	})
	return err
}

// publish sends one timeline event, stamping it first. Publish failures are
// logged and swallowed.
func (e *Executor) publish(ctx context.Context, ev Event) {
	if e.events == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := e.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		e.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("event publish failed")
	}
}

// record invokes one recorder call if a recorder is wired. Persistence
// failures never fail the run.
func (e *Executor) record(ctx context.Context, fn func() error) {
	if e.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		e.logger.Warn().Err(err).Msg("run recorder failed")
	}
}

func runStatus(r *RunResult, cancelled bool) RunStatus {
	if cancelled {
		return RunCancelled
	}
	for _, sr := range r.Steps {
		if sr.Status != StepVerified {
			return RunFailed
		}
	}
	return RunVerified
}

func eventLevel(s StepStatus) string {
	switch s {
	case StepFailed:
		return "error"
	case StepSkipped, StepCancelled:
		return "warning"
	default:
		return "info"
	}
}

func eventLevelRun(s RunStatus) string {
	if s == RunVerified {
		return "info"
	}
	return "error"
}

func appendOutput(existing, more string) string {
	if more == "" {
		return existing
	}
	if existing == "" {
		return more
	}
	return existing + "\n" + more
}
