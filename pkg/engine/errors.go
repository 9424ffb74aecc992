// Package engine implements the resolution-and-install execution core of
// formulary: dependency resolution over tiered dependency declarations, the
// install-then-test lifecycle state machine, and caveat rendering.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ResolutionErrorCode classifies why dependency resolution failed.
type ResolutionErrorCode string

const (
	// CodeMissingRequired indicates a required (or explicitly selected
	// optional) dependency could not be located anywhere.
	CodeMissingRequired ResolutionErrorCode = "MISSING_REQUIRED"

	// CodeCycle indicates the dependency graph contains a cycle.
	CodeCycle ResolutionErrorCode = "CYCLE"
)

// ResolutionError is a fatal resolution failure. No partial plan is ever
// returned alongside one.
type ResolutionError struct {
	// Code classifies the failure.
	Code ResolutionErrorCode

	// Name is the dependency that could not be satisfied, if applicable.
	Name string

	// Path is the dependency cycle path for CYCLE errors.
	Path []string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	switch e.Code {
	case CodeCycle:
		return fmt.Sprintf("resolve: [%s] dependency cycle: %s", e.Code, strings.Join(e.Path, " -> "))
	default:
		if e.Err != nil {
			return fmt.Sprintf("resolve: [%s] dependency %q: %v", e.Code, e.Name, e.Err)
		}
		return fmt.Sprintf("resolve: [%s] dependency %q cannot be satisfied", e.Code, e.Name)
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches resolution errors by code.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Name == "" || e.Name == t.Name)
}

// NewMissingRequiredError creates a MISSING_REQUIRED resolution error.
func NewMissingRequiredError(name string) *ResolutionError {
	return &ResolutionError{Code: CodeMissingRequired, Name: name}
}

// NewCycleError creates a CYCLE resolution error carrying the cycle path.
func NewCycleError(path []string) *ResolutionError {
	return &ResolutionError{Code: CodeCycle, Path: path}
}

// IsMissingRequired returns true if err is a MISSING_REQUIRED resolution error.
func IsMissingRequired(err error) bool {
	var e *ResolutionError
	if errors.As(err, &e) {
		return e.Code == CodeMissingRequired
	}
	return false
}

// IsCycle returns true if err is a CYCLE resolution error.
func IsCycle(err error) bool {
	var e *ResolutionError
	if errors.As(err, &e) {
		return e.Code == CodeCycle
	}
	return false
}

// LifecycleErrorCode classifies a lifecycle phase failure.
type LifecycleErrorCode string

const (
	// CodeInstallFailed indicates the Installing phase exited non-zero.
	CodeInstallFailed LifecycleErrorCode = "INSTALL_FAILED"

	// CodeTestFailed indicates the Testing phase failed its predicate,
	// crashed, or timed out.
	CodeTestFailed LifecycleErrorCode = "TEST_FAILED"
)

// LifecycleError is a fatal failure of one descriptor's install or test
// phase. Install and test failures are treated as non-transient and are never
// retried; the error carries the formula name, phase and captured output up
// to the CLI boundary.
type LifecycleError struct {
	// Code classifies the failure.
	Code LifecycleErrorCode

	// Formula is the formula whose phase failed.
	Formula string

	// Phase is the lifecycle phase that failed.
	Phase Phase

	// ExitCode is the process exit code, when a process ran and terminated.
	ExitCode int

	// Output is the captured combined output of the failed phase.
	Output string

	// Timeout is true when the test phase exceeded its configured timeout.
	Timeout bool

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	msg := fmt.Sprintf("lifecycle: [%s] formula %q phase %s", e.Code, e.Formula, e.Phase)
	if e.Timeout {
		msg += " timed out"
	}
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// Is matches lifecycle errors by code.
func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Formula == "" || e.Formula == t.Formula)
}

// WithOutput attaches captured output to the error.
func (e *LifecycleError) WithOutput(output string) *LifecycleError {
	e.Output = output
	return e
}

// WithExitCode attaches the process exit code to the error.
func (e *LifecycleError) WithExitCode(code int) *LifecycleError {
	e.ExitCode = code
	return e
}

// NewInstallFailedError creates an INSTALL_FAILED lifecycle error.
func NewInstallFailedError(formulaName string, err error) *LifecycleError {
	return &LifecycleError{Code: CodeInstallFailed, Formula: formulaName, Phase: PhaseInstall, Err: err}
}

// NewTestFailedError creates a TEST_FAILED lifecycle error.
func NewTestFailedError(formulaName string, err error) *LifecycleError {
	return &LifecycleError{Code: CodeTestFailed, Formula: formulaName, Phase: PhaseTest, Err: err}
}

// IsInstallFailed returns true if err is an INSTALL_FAILED lifecycle error.
func IsInstallFailed(err error) bool {
	var e *LifecycleError
	if errors.As(err, &e) {
		return e.Code == CodeInstallFailed
	}
	return false
}

// IsTestFailed returns true if err is a TEST_FAILED lifecycle error.
func IsTestFailed(err error) bool {
	var e *LifecycleError
	if errors.As(err, &e) {
		return e.Code == CodeTestFailed
	}
	return false
}
