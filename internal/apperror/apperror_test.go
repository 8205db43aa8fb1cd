package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "a@b.com"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "email is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "a@b.com"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("no access"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "NotFound does not match ErrUnauthorized",
			err:       NotFound("user", "a@b.com"),
			target:    ErrUnauthorized,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// Wrapping an AppError with fmt.Errorf("%w") must keep the sentinel
// reachable — handlers rely on this to map service errors to status codes.
func TestErrorsIs_ThroughWrapping(t *testing.T) {
	inner := Unauthorized("invalid credentials")
	wrapped := fmt.Errorf("service/auth: verifying callback: %w", inner)

	if !errors.Is(wrapped, ErrUnauthorized) {
		t.Error("wrapped error should still match ErrUnauthorized")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should extract *AppError from wrapped chain")
	}
	if appErr.Message != "invalid credentials" {
		t.Errorf("Message = %q, want %q", appErr.Message, "invalid credentials")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := NotFound("user", "missing@example.com")
	want := "user not found: missing@example.com"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
