// Package contract checks that a crew agent plugin behaves like a pipeline
// stage.
package contract

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

// Result captures the outcome of a single contract assertion.
type Result struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Timeout bounds each Execute assertion.
var Timeout = 2 * time.Minute

// AssertID verifies the agent id is usable as a stage and feedback file name.
func AssertID(a agent.Agent) Result {
	if !idPattern.MatchString(a.ID()) {
		return Result{Name: "ID", Message: fmt.Sprintf("id %q must be lowercase letters, digits, '-' and '_'", a.ID())}
	}
	return Result{Name: "ID", Passed: true, Message: a.ID()}
}

// AssertPhase verifies the agent declares the plan or code phase.
func AssertPhase(a agent.Agent) Result {
	switch a.Phase() {
	case agent.PhasePlan, agent.PhaseCode:
		return Result{Name: "Phase", Passed: true, Message: string(a.Phase())}
	}
	return Result{Name: "Phase", Message: fmt.Sprintf("phase %q must be plan or code", a.Phase())}
}

// AssertDescription verifies the agent describes itself.
func AssertDescription(a agent.Agent) Result {
	if a.Description() == "" {
		return Result{Name: "Description", Message: "description is empty"}
	}
	return Result{Name: "Description", Passed: true, Message: a.Description()}
}

// AssertFirstStage runs the agent as the only stage of a pipeline.
func AssertFirstStage(a agent.Agent) Result {
	ac := (&agent.Context{UserRequest: "Build a todo list CLI", Mode: agent.ModePlan}).
		WithStage(a.ID(), nil, nil)
	return execute("FirstStage", a, ac)
}

// AssertLaterStage runs the agent after another stage's output.
func AssertLaterStage(a agent.Agent) Result {
	outputs := map[string]string{"analyst": "# Requirements\n\n- add, list and remove todos"}
	ac := (&agent.Context{UserRequest: "Build a todo list CLI", Mode: agent.ModePlan}).
		WithStage(a.ID(), outputs, []string{"analyst"})
	return execute("LaterStage", a, ac)
}

func execute(name string, a agent.Agent, ac *agent.Context) Result {
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	out, err := a.Execute(ctx, ac)
	if err != nil {
		return Result{Name: name, Message: fmt.Sprintf("Execute failed: %v", err)}
	}
	if out == "" {
		return Result{Name: name, Message: "Execute returned empty output"}
	}
	return Result{Name: name, Passed: true, Message: fmt.Sprintf("%d bytes of output", len(out))}
}
