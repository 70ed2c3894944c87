package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("SB-TEST-1000", "test message"),
			expected: "[SB-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("SB-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[SB-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("SB-TEST-1000", "message 1")
	err2 := NewDomainError("SB-TEST-1000", "message 2") // Same code, different message
	err3 := NewDomainError("SB-TEST-1001", "message 1") // Different code

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}

	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}

	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := ErrIoFailure.WithCause(cause)

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if errors.Unwrap(ErrIoFailure) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithCausePreservesIdentity(t *testing.T) {
	wrapped := ErrBadPasswordOrCorrupt.WithCause(fmt.Errorf("cipher: message authentication failed"))

	if !errors.Is(wrapped, ErrBadPasswordOrCorrupt) {
		t.Error("wrapped error should still match its sentinel")
	}
	if ErrBadPasswordOrCorrupt.Cause != nil {
		t.Error("WithCause should not modify the sentinel")
	}
}

func TestIsDomainError(t *testing.T) {
	err := ErrNotExisting.WithDetails("vault 0a0b")

	if !IsDomainError(err, "SB-KEYS-4040") {
		t.Error("IsDomainError should match the code")
	}
	if IsDomainError(err, "SB-SNAP-4010") {
		t.Error("IsDomainError should not match a different code")
	}
	if !IsDomainError(err, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(fmt.Errorf("plain"), "") {
		t.Error("IsDomainError should reject non-DomainError")
	}
}

func TestGetErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("loading snapshot: %w", ErrBadPasswordOrCorrupt)

	if got := GetErrorCode(wrapped); got != "SB-SNAP-4010" {
		t.Errorf("GetErrorCode() = %q, want %q", got, "SB-SNAP-4010")
	}
	if got := GetErrorCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty", got)
	}
}
