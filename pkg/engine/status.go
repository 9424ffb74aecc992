package engine

import (
	"encoding/json"
	"fmt"
)

// StepStatus represents the lifecycle state of one plan step. The state
// machine per step is Pending -> Installing -> Testing -> {Verified, Failed};
// Skipped and Cancelled cover steps that never start.
type StepStatus string

const (
	// StepPending indicates the step is waiting to execute.
	StepPending StepStatus = "pending"

	// StepInstalling indicates the install phase is running.
	StepInstalling StepStatus = "installing"

	// StepTesting indicates the smoke test phase is running.
	StepTesting StepStatus = "testing"

	// StepVerified indicates install and test completed successfully.
	// Verified is terminal.
	StepVerified StepStatus = "verified"

	// StepFailed indicates a phase failed. Failed is terminal; dependent
	// steps do not proceed.
	StepFailed StepStatus = "failed"

	// StepSkipped indicates a dependency of the step ended in Failed.
	StepSkipped StepStatus = "skipped"

	// StepCancelled indicates the run was cancelled before the step started
	// its next phase.
	StepCancelled StepStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepVerified || s == StepFailed || s == StepSkipped || s == StepCancelled
}

// Validate checks if the step status is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepPending, StepInstalling, StepTesting, StepVerified,
		StepFailed, StepSkipped, StepCancelled:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe serialization.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = StepStatus(str)
	return s.Validate()
}

// RunStatus represents the overall outcome of one install invocation.
type RunStatus string

const (
	// RunPending indicates the run has not started executing.
	RunPending RunStatus = "pending"

	// RunRunning indicates the run is currently executing.
	RunRunning RunStatus = "running"

	// RunVerified indicates every step ended Verified.
	RunVerified RunStatus = "verified"

	// RunFailed indicates at least one step ended Failed or Skipped.
	RunFailed RunStatus = "failed"

	// RunCancelled indicates the run was cancelled before completion.
	RunCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunVerified || s == RunFailed || s == RunCancelled
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunPending, RunRunning, RunVerified, RunFailed, RunCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// Phase identifies a lifecycle phase of a step.
type Phase string

const (
	// PhaseFetch retrieves and integrity-checks the pinned artifact.
	PhaseFetch Phase = "fetch"

	// PhaseBuild constructs the isolated environment.
	PhaseBuild Phase = "build"

	// PhaseInstall runs the install strategy inside the environment.
	PhaseInstall Phase = "install"

	// PhaseTest runs the post-install smoke test.
	PhaseTest Phase = "test"
)

// StepAction describes what the executor will do for a plan step.
type StepAction string

const (
	// ActionInstall installs the step's formula into a fresh environment.
	ActionInstall StepAction = "install"

	// ActionUseSystem satisfies the dependency from the system; nothing is
	// installed, availability is re-verified at execution time.
	ActionUseSystem StepAction = "use-system"
)

// EventType identifies an execution timeline event.
type EventType string

const (
	// EventRunStarted indicates an install run has started.
	EventRunStarted EventType = "run_started"

	// EventRunCompleted indicates an install run reached a terminal status.
	EventRunCompleted EventType = "run_completed"

	// EventStepStatusChanged indicates a step transitioned between states.
	EventStepStatusChanged EventType = "step_status_changed"

	// EventPhaseStarted indicates a lifecycle phase started for a step.
	EventPhaseStarted EventType = "phase_started"

	// EventPhaseCompleted indicates a lifecycle phase finished for a step.
	EventPhaseCompleted EventType = "phase_completed"
)
