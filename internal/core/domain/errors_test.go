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
			err:      NewDomainError("WP-TEST-1000", "test message"),
			expected: "[WP-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("WP-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[WP-TEST-1001] test message: extra info",
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
	a := NewDomainError("WP-TEST-1000", "message 1")
	b := NewDomainError("WP-TEST-1000", "message 2")
	c := NewDomainError("WP-TEST-1001", "message 1")

	if !errors.Is(a, b) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(a, c) {
		t.Error("errors.Is should not match a different code")
	}
	if errors.Is(a, fmt.Errorf("plain")) {
		t.Error("errors.Is should not match a non-DomainError")
	}

	wrapped := fmt.Errorf("save: %w", ErrSavePointNotFound.WithDetails("sp-1"))
	if !errors.Is(wrapped, ErrSavePointNotFound) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestDomainError_WithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := ErrStorage.WithCause(cause)

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if ErrStorage.Cause != nil {
		t.Error("WithCause should not modify the sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestIsDomainError(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrSessionNotFound)

	if !IsDomainError(err, "") {
		t.Error("expected a DomainError")
	}
	if !IsDomainError(err, "WP-SESS-4040") {
		t.Error("expected code WP-SESS-4040")
	}
	if IsDomainError(err, "WP-SAVE-4040") {
		t.Error("unexpected code match")
	}
	if IsDomainError(errors.New("plain"), "") {
		t.Error("plain error is not a DomainError")
	}
}

func TestDomainError_Status(t *testing.T) {
	tests := []struct {
		err  *DomainError
		want int
	}{
		{ErrSessionNotFound, 404},
		{ErrNoValidSavePoint, 404},
		{ErrSessionState, 409},
		{ErrSaveInProgress, 409},
		{ErrIntegrityFailed, 422},
		{ErrRestoreCategory, 422},
		{ErrRateLimited, 429},
		{ErrInvalidArgument, 400},
		{ErrMissingArgument, 400},
		{ErrBadRequest, 400},
		{ErrSessionValidation, 400},
		{ErrServiceUnavailable, 503},
		{ErrSaveFailed, 500},
		{ErrStorage, 500},
		{NewDomainError("WP-TEST-x", "no status"), 500},
	}
	for _, tt := range tests {
		if got := tt.err.WithDetails("d").Status(); got != tt.want {
			t.Errorf("%s.Status() = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
