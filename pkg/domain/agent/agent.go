// Package agent defines the unit of work executed by the pipeline and the
// registry that resolves stage ids to agents.
package agent

import (
	"context"
	"errors"
)

var (
	// ErrMissingService signals a required collaborator was never wired.
	ErrMissingService = errors.New("required service not configured")

	// ErrInvalidInput is returned by ValidateInput implementations.
	ErrInvalidInput = errors.New("invalid agent input")
)

// Phase groups agents into the planning or coding half of a project run.
type Phase string

const (
	PhasePlan Phase = "plan"
	PhaseCode Phase = "code"
)

// Agent executes one stage. Expected failures (LLM or file errors) are
// reported through feedback and a best-effort output; a returned error means
// the agent could not run at all.
type Agent interface {
	ID() string
	Description() string
	Phase() Phase
	Execute(ctx context.Context, ac *Context) (string, error)
}

// InputValidator is implemented by agents that reject unusable input up front.
type InputValidator interface {
	ValidateInput(ac *Context) error
}

// PreProcessor may rewrite the stage context before Execute.
type PreProcessor interface {
	PreProcess(ctx context.Context, ac *Context) (*Context, error)
}

// PostProcessor may rewrite the stage output after Execute.
type PostProcessor interface {
	PostProcess(ctx context.Context, ac *Context, output string) (string, error)
}
