package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "SB-SNAP-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Key and vault errors (KEYS)
// ============================================================================

var (
	// ErrNotExisting indicates the requested vault, key, or record does not exist.
	ErrNotExisting = NewDomainError("SB-KEYS-4040", "vault or record does not exist")

	// ErrKeySize indicates a vault key of the wrong length.
	ErrKeySize = NewDomainError("SB-KEYS-4001", "invalid key size")
)

// ============================================================================
// Snapshot errors (SNAP)
// ============================================================================

var (
	// ErrBadPasswordOrCorrupt covers every failure between reading snapshot
	// bytes and obtaining decrypted client state: wrong key, truncated file,
	// failed checksum, or undecodable plaintext. The classes are deliberately
	// indistinguishable to the caller.
	ErrBadPasswordOrCorrupt = NewDomainError("SB-SNAP-4010", "wrong password or corrupt snapshot")

	// ErrSnapshotFormat indicates the file is not a snapshot at all
	// (bad magic or unsupported version), detectable before any key is used.
	ErrSnapshotFormat = NewDomainError("SB-SNAP-4000", "unrecognized snapshot format")

	// ErrClientDataMissing indicates the snapshot holds no entry for the
	// requested client.
	ErrClientDataMissing = NewDomainError("SB-SNAP-4041", "no client data in snapshot")
)

// ============================================================================
// System errors (SYS)
// ============================================================================

var (
	// ErrIoFailure indicates a filesystem or storage backend failure.
	ErrIoFailure = NewDomainError("SB-SYS-5001", "i/o failure")

	// ErrInternalInvariant indicates corrupted in-memory state, such as a
	// keystore that reports a vault present but cannot produce its key.
	ErrInternalInvariant = NewDomainError("SB-SYS-5000", "internal invariant violated")

	// ErrRateLimited indicates snapshot read attempts are being throttled.
	ErrRateLimited = NewDomainError("SB-SYS-4290", "too many attempts")
)

// ============================================================================
// Argument errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("SB-ARG-1001", "invalid argument")
)
