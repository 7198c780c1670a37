package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var lockErr *domain.LockError
	if errors.As(err, &lockErr) {
		return NewCLIError(
			"workspace is locked",
			fmt.Sprintf("Wait for the other crew run to finish, or delete %s if it crashed", lockErr.Path),
			err,
		)
	}

	switch {
	case errors.Is(err, context.Canceled):
		e := NewCLIError("run interrupted", "Completed stages were saved; run 'crew code' to resume", err)
		e.ExitCode = 130
		return e
	case errors.Is(err, application.ErrNestedOrchestrator):
		return NewCLIError("the orchestrator cannot be a stage", "Use 'crew plan' or 'crew code' to drive the orchestrator", err)
	case errors.Is(err, domain.ErrIO):
		return NewCLIError("could not write to the workspace", "Check directory permissions", err)
	}

	return err
}
