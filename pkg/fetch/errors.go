package fetch

import (
	"errors"
	"fmt"
)

// FetchErrorCode identifies the category of a fetch failure.
type FetchErrorCode string

const (
	// CodeUnreachable indicates the source could not be retrieved after the
	// configured number of attempts.
	CodeUnreachable FetchErrorCode = "UNREACHABLE"

	// CodeIntegrityMismatch indicates the retrieved payload's digest does
	// not match the formula's pinned digest. Never retried: a wrong digest
	// on a complete download means the source is wrong, not the network.
	CodeIntegrityMismatch FetchErrorCode = "INTEGRITY_MISMATCH"
)

// FetchError describes a failure to retrieve or verify a source artifact.
type FetchError struct {
	// Code is the error category.
	Code FetchErrorCode

	// URL is the source being fetched.
	URL string

	// Expected is the pinned SHA-256 digest, hex-encoded.
	Expected string

	// Actual is the digest of the retrieved payload, hex-encoded. Only set
	// for integrity mismatches.
	Actual string

	// Attempts is how many retrieval attempts were made.
	Attempts int

	// Err is the underlying error, if any.
	Err error
}

func (e *FetchError) Error() string {
	switch e.Code {
	case CodeIntegrityMismatch:
		return fmt.Sprintf("fetch %s [%s]: expected digest %s, got %s", e.URL, e.Code, e.Expected, e.Actual)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s [%s]: after %d attempts: %v", e.URL, e.Code, e.Attempts, e.Err)
		}
		return fmt.Sprintf("fetch %s [%s]: after %d attempts", e.URL, e.Code, e.Attempts)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsUnreachable reports whether err is a fetch failure after exhausting
// retries.
func IsUnreachable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Code == CodeUnreachable
}

// IsIntegrityMismatch reports whether err is a digest verification failure.
func IsIntegrityMismatch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Code == CodeIntegrityMismatch
}
