// Package planning holds the persisted plan model: the ordered stage list a
// planning run produces and the state document that tracks which stages have
// run across process restarts.
package planning

import (
	"github.com/google/uuid"
)

// PlanStep is one stage of a plan, identified by the agent that runs it.
type PlanStep struct {
	AgentID     string `json:"agentId"`
	Description string `json:"description,omitempty"`
}

// Plan is an ordered list of steps. Order defines execution order within a phase.
type Plan struct {
	ID    string     `json:"id,omitempty"`
	Steps []PlanStep `json:"steps"`
}

// Default stage lists used when no plan is generated.
var (
	DefaultPipelineOrder = []string{"analyst", "architect", "uxdesigner", "developer", "pm", "qa", "techwriter", "quickflowdev"}
	DefaultPlanSteps     = []string{"analyst", "architect", "uxdesigner", "pm"}
	DefaultCodeSteps     = []string{"developer", "codereview", "qa", "techwriter"}
)

var defaultCoding = map[string]bool{
	"developer":  true,
	"codereview": true,
	"qa":         true,
	"techwriter": true,
}

// IsDefaultCodingStep reports whether id is one of the built-in coding-phase agents.
func IsDefaultCodingStep(id string) bool {
	return defaultCoding[id]
}

// NewPlan builds a plan with a fresh id from the given agent ids.
func NewPlan(agentIDs ...string) *Plan {
	p := &Plan{ID: uuid.NewString()}
	for _, id := range agentIDs {
		p.Steps = append(p.Steps, PlanStep{AgentID: id})
	}
	return p
}

// AgentIDs returns the step agent ids in plan order without duplicates.
func (p *Plan) AgentIDs() []string {
	seen := make(map[string]bool, len(p.Steps))
	ids := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		if s.AgentID == "" || seen[s.AgentID] {
			continue
		}
		seen[s.AgentID] = true
		ids = append(ids, s.AgentID)
	}
	return ids
}

// Contains reports whether the plan has a step for agentID.
func (p *Plan) Contains(agentID string) bool {
	for _, s := range p.Steps {
		if s.AgentID == agentID {
			return true
		}
	}
	return false
}

// Append adds steps for ids that are not yet part of the plan.
func (p *Plan) Append(agentIDs ...string) {
	for _, id := range agentIDs {
		if !p.Contains(id) {
			p.Steps = append(p.Steps, PlanStep{AgentID: id})
		}
	}
}
