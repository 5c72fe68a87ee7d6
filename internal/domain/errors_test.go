package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "kind and message",
			err:      ErrValidation("missing required fields"),
			expected: "validation: missing required fields",
		},
		{
			name:     "with cause",
			err:      ErrIO("write vacancy file", errors.New("permission denied")),
			expected: "io: write vacancy file: permission denied",
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

func TestError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected int
	}{
		{"validation", ErrValidation("x"), http.StatusBadRequest},
		{"parse", ErrParse("x", nil), http.StatusBadRequest},
		{"not found", ErrNotFound("x"), http.StatusNotFound},
		{"io", ErrIO("x", nil), http.StatusInternalServerError},
		{"generation", ErrGeneration("x", nil), http.StatusInternalServerError},
		{"timeout", ErrTimeout("x", nil), http.StatusInternalServerError},
		{"override", ErrParse("x", nil).WithStatusCode(http.StatusBadGateway), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAsError(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", ErrGeneration("generator exited with status 2", nil))

	got := AsError(wrapped)
	if got.Kind != ErrorKindGeneration {
		t.Errorf("Kind = %q, want %q", got.Kind, ErrorKindGeneration)
	}
	if !IsKind(wrapped, ErrorKindGeneration) {
		t.Error("IsKind() = false, want true")
	}

	plain := AsError(errors.New("boom"))
	if plain.Kind != ErrorKindServer {
		t.Errorf("Kind = %q, want %q", plain.Kind, ErrorKindServer)
	}
	if plain.HTTPStatusCode() != http.StatusInternalServerError {
		t.Errorf("HTTPStatusCode() = %d, want 500", plain.HTTPStatusCode())
	}
}
