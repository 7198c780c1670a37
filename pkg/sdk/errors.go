package sdk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoContent is returned when a tool result contains no content items.
var ErrNoContent = errors.New("crew: empty tool result")

var (
	// ErrWorkspaceBusy matches a ToolError raised because another run held
	// the workspace lock. Retry after that run finishes.
	ErrWorkspaceBusy = errors.New("crew: workspace locked by another run")

	// ErrRunCanceled matches a ToolError for a run cancelled on the server.
	// Completed stages were saved and crew_code resumes them.
	ErrRunCanceled = errors.New("crew: run cancelled")
)

// ToolError is returned when a tool call returns an error result.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("crew: tool %s: %s", e.Tool, e.Message)
}

// Is classifies the server's user-facing messages, so callers can write
// errors.Is(err, sdk.ErrWorkspaceBusy).
func (e *ToolError) Is(target error) bool {
	switch target {
	case ErrWorkspaceBusy:
		return strings.Contains(e.Message, "workspace lock")
	case ErrRunCanceled:
		return strings.Contains(e.Message, "was cancelled")
	}
	return false
}
