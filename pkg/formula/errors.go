package formula

import (
	"errors"
	"fmt"
)

// ParseErrorCode classifies why a formula document was rejected.
type ParseErrorCode string

const (
	// CodeMissingField indicates a required field is absent.
	CodeMissingField ParseErrorCode = "MISSING_FIELD"

	// CodeInvalidValue indicates a field holds an unknown or malformed value.
	CodeInvalidValue ParseErrorCode = "INVALID_VALUE"

	// CodeDuplicateDependency indicates a dependency name is declared twice.
	CodeDuplicateDependency ParseErrorCode = "DUPLICATE_DEPENDENCY"

	// CodeMalformedDocument indicates the document could not be decoded at all.
	CodeMalformedDocument ParseErrorCode = "MALFORMED_DOCUMENT"

	// CodeSchemaViolation indicates the document failed schema validation.
	CodeSchemaViolation ParseErrorCode = "SCHEMA_VIOLATION"
)

// ParseError reports a malformed formula document. Parsing is fatal: no
// formula is produced and no plan is built.
type ParseError struct {
	// Code classifies the rejection.
	Code ParseErrorCode

	// Field is the offending field path, if applicable.
	Field string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("formula: [%s] field %q: %v", e.Code, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("formula: [%s] field %q", e.Code, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("formula: [%s]: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("formula: [%s]", e.Code)
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches parse errors by code.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Field == "" || e.Field == t.Field)
}

func newParseError(code ParseErrorCode, field string, err error) *ParseError {
	return &ParseError{Code: code, Field: field, Err: err}
}

// IsMissingField returns true if err is a ParseError for a missing field.
func IsMissingField(err error) bool {
	var e *ParseError
	if errors.As(err, &e) {
		return e.Code == CodeMissingField
	}
	return false
}
