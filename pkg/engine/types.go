package engine

import (
	"time"

	"github.com/formulary/formulary/pkg/formula"
)

// PlanStep is one unit of work in an install plan. Steps are ordered:
// dependencies always precede their dependents.
type PlanStep struct {
	// Name identifies the step's package.
	Name string `json:"name"`

	// Tier is the tier decision this step was included under. The root
	// formula's step carries TierRequired.
	Tier formula.Tier `json:"tier"`

	// Action is what the executor does for this step.
	Action StepAction `json:"action"`

	// BuildOnly marks build-tier dependencies that may be removed from the
	// environment after installation.
	BuildOnly bool `json:"build_only,omitempty"`

	// Formula is the step's descriptor for install steps; nil for use-system
	// steps, which refer to opaque system packages.
	Formula *formula.Formula `json:"formula,omitempty"`

	// DependsOn lists names of earlier steps this step depends on. A step
	// whose dependency ended in Failed is Skipped.
	DependsOn []string `json:"depends_on,omitempty"`
}

// InstallPlan is the resolver's output: an ordered sequence of steps plus the
// tier decisions that shaped it. A plan is built once per install invocation
// and owned by the executor for that invocation's duration.
type InstallPlan struct {
	// ID uniquely identifies this resolution.
	ID string `json:"id"`

	// Root is the name of the top-level formula the plan installs.
	Root string `json:"root"`

	// Steps are the ordered work units. Ordering is topological with ties
	// broken by declaration order, and is deterministic across repeated
	// resolutions of identical input.
	Steps []PlanStep `json:"steps"`

	// MissingRecommended lists recommended dependencies that were absent.
	// Their absence downgrades functionality but is not an error; the caveats
	// renderer reads this.
	MissingRecommended []string `json:"missing_recommended,omitempty"`

	// UnselectedOptional lists optional dependencies that were declared but
	// not selected by the caller.
	UnselectedOptional []string `json:"unselected_optional,omitempty"`

	// SkippedRecommended lists recommended dependencies excluded by caller
	// configuration rather than absence.
	SkippedRecommended []string `json:"skipped_recommended,omitempty"`

	// CreatedAt is when the plan was resolved.
	CreatedAt time.Time `json:"created_at"`
}

// Step returns the plan step with the given name, if any.
func (p *InstallPlan) Step(name string) (*PlanStep, bool) {
	for i := range p.Steps {
		if p.Steps[i].Name == name {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// StepResult records the terminal state of one executed plan step.
type StepResult struct {
	// Name is the step's package name.
	Name string `json:"name"`

	// Action is the action the executor took.
	Action StepAction `json:"action"`

	// Status is the step's terminal status.
	Status StepStatus `json:"status"`

	// Output is the captured combined output of the step's phases.
	Output string `json:"output,omitempty"`

	// Err is the failure, if the step did not verify.
	Err error `json:"-"`

	// Error is the failure message for serialization.
	Error string `json:"error,omitempty"`

	// StartedAt is when the step began executing.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the step reached a terminal status.
	CompletedAt time.Time `json:"completed_at"`

	// InstallDuration is the time spent fetching, building and installing.
	InstallDuration time.Duration `json:"install_duration"`

	// TestDuration is the time spent in the test phase.
	TestDuration time.Duration `json:"test_duration"`
}

// RunResult is the outcome of executing one install plan.
type RunResult struct {
	// RunID uniquely identifies this execution.
	RunID string `json:"run_id"`

	// PlanID is the plan that was executed.
	PlanID string `json:"plan_id"`

	// Root is the top-level formula name.
	Root string `json:"root"`

	// Status is the overall run status.
	Status RunStatus `json:"status"`

	// Steps holds one result per plan step, in plan order.
	Steps []StepResult `json:"steps"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when execution finished.
	CompletedAt time.Time `json:"completed_at"`
}

// StepResult returns the result for the named step, if present.
func (r *RunResult) StepResult(name string) (*StepResult, bool) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

// Verified reports whether the named step ended Verified.
func (r *RunResult) Verified(name string) bool {
	sr, ok := r.StepResult(name)
	return ok && sr.Status == StepVerified
}

// Summary counts step outcomes.
type Summary struct {
	Total     int `json:"total"`
	Verified  int `json:"verified"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

// Summarize computes outcome counts over the run's steps.
func (r *RunResult) Summarize() Summary {
	s := Summary{Total: len(r.Steps)}
	for _, st := range r.Steps {
		switch st.Status {
		case StepVerified:
			s.Verified++
		case StepFailed:
			s.Failed++
		case StepSkipped:
			s.Skipped++
		case StepCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Event is one execution timeline event.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the event type.
	Type EventType `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// RunID is the run this event belongs to.
	RunID string `json:"run_id"`

	// Step is the plan step name, if applicable.
	Step string `json:"step,omitempty"`

	// Phase is the lifecycle phase, if applicable.
	Phase Phase `json:"phase,omitempty"`

	// Status is the step status after the event, if applicable.
	Status StepStatus `json:"status,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the log level (info, warning, error).
	Level string `json:"level"`
}
