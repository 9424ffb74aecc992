package envbuild

import (
	"errors"
	"fmt"
)

// BuildErrorCode classifies why an environment could not be built.
type BuildErrorCode string

const (
	// CodeRuntimeUnavailable indicates the pinned runtime interpreter is
	// absent or present at a conflicting version.
	CodeRuntimeUnavailable BuildErrorCode = "RUNTIME_UNAVAILABLE"

	// CodeInsufficientSpace indicates the environments root lacks the disk
	// space the formula's payload needs. The builder fails fast before
	// writing anything.
	CodeInsufficientSpace BuildErrorCode = "INSUFFICIENT_SPACE"
)

// BuildError is a fatal environment construction failure for one descriptor;
// its dependents are skipped.
type BuildError struct {
	// Code classifies the failure.
	Code BuildErrorCode

	// Formula is the formula whose environment failed to build.
	Formula string

	// Runtime is the pinned interpreter, for RUNTIME_UNAVAILABLE.
	Runtime string

	// RequiredBytes and AvailableBytes describe the shortfall, for
	// INSUFFICIENT_SPACE.
	RequiredBytes  uint64
	AvailableBytes uint64

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	switch e.Code {
	case CodeInsufficientSpace:
		return fmt.Sprintf("envbuild: [%s] formula %q needs %d bytes, %d available",
			e.Code, e.Formula, e.RequiredBytes, e.AvailableBytes)
	default:
		msg := fmt.Sprintf("envbuild: [%s] formula %q runtime %q", e.Code, e.Formula, e.Runtime)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is matches build errors by code.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsRuntimeUnavailable returns true if err is a RUNTIME_UNAVAILABLE build error.
func IsRuntimeUnavailable(err error) bool {
	var e *BuildError
	if errors.As(err, &e) {
		return e.Code == CodeRuntimeUnavailable
	}
	return false
}

// IsInsufficientSpace returns true if err is an INSUFFICIENT_SPACE build error.
func IsInsufficientSpace(err error) bool {
	var e *BuildError
	if errors.As(err, &e) {
		return e.Code == CodeInsufficientSpace
	}
	return false
}
