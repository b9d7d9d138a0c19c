package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRemoteNil(t *testing.T) {
	if err := Remote("load task", nil); err != nil {
		t.Errorf("Remote with nil error = %v, want nil", err)
	}
}

func TestRemoteWraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Remote("load task", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
	if !IsRemote(err) {
		t.Error("IsRemote = false, want true")
	}
	if !strings.Contains(err.Error(), "load task") {
		t.Errorf("message %q does not name the operation", err.Error())
	}
}

func TestPredicates(t *testing.T) {
	valErr := Validation("title", "must not be empty")
	authErr := &AuthError{Err: errors.New("unknown user")}
	remErr := Remote("x", errors.New("y"))

	tests := []struct {
		name       string
		err        error
		validation bool
		remote     bool
		auth       bool
	}{
		{"validation", valErr, true, false, false},
		{"remote", remErr, false, true, false},
		{"auth", authErr, false, false, true},
		{"unauthenticated", ErrUnauthenticated, false, false, false},
		{"wrapped validation", fmt.Errorf("outer: %w", valErr), true, false, false},
		{"wrapped remote", fmt.Errorf("outer: %w", remErr), false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation = %v, want %v", got, tt.validation)
			}
			if got := IsRemote(tt.err); got != tt.remote {
				t.Errorf("IsRemote = %v, want %v", got, tt.remote)
			}
			if got := IsAuth(tt.err); got != tt.auth {
				t.Errorf("IsAuth = %v, want %v", got, tt.auth)
			}
		})
	}
}

func TestValidationMessage(t *testing.T) {
	err := Validation("priority", "must be high, medium or low")
	want := "invalid priority: must be high, medium or low"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
