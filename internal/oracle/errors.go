package oracle

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an analysis could not be produced.
type ErrorKind string

const (
	// ErrorKindConnection covers dial failures, resets and client timeouts.
	ErrorKindConnection ErrorKind = "connection"

	// ErrorKindStatus means the endpoint answered with a non-200 status.
	ErrorKindStatus ErrorKind = "status"

	// ErrorKindMalformedResponse means the body was not the expected JSON shape.
	ErrorKindMalformedResponse ErrorKind = "malformed_response"

	// ErrorKindPromptTooLarge means the prompt exceeded the configured token budget
	// and was never sent.
	ErrorKindPromptTooLarge ErrorKind = "prompt_too_large"
)

// Error is the typed failure returned by Client.Analyze.
type Error struct {
	Kind       ErrorKind
	Detail     string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("oracle %s", e.Kind)
	}
	return fmt.Sprintf("oracle %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Render returns the text shown to the candidate in place of an analysis.
func (e *Error) Render() string {
	switch e.Kind {
	case ErrorKindConnection:
		return "Error: Failed to connect to LLM service: " + e.Detail
	case ErrorKindStatus:
		return fmt.Sprintf("Error: Received status %d from LLM service.", e.StatusCode)
	case ErrorKindMalformedResponse:
		return "Error: Failed to parse LLM response."
	case ErrorKindPromptTooLarge:
		return "Error: Submission is too large to analyze (" + e.Detail + ")."
	default:
		return "Error: " + e.Error()
	}
}

// Render turns any error from Analyze into candidate-facing text.
func Render(err error) string {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Render()
	}
	return "Error: " + err.Error()
}
