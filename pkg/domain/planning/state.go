package planning

import (
	"slices"
	"time"
)

// PlanState is the persisted record of a plan run. Lifecycle is inferred
// from the pending and completed step lists; there is no stored status.
type PlanState struct {
	Plan           Plan              `json:"plan"`
	AgentOutputs   map[string]string `json:"agentOutputs"`
	CompletedSteps []string          `json:"completedSteps"`
	PendingSteps   []string          `json:"pendingSteps"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	UserRequest    string            `json:"userRequest"`
	ConversationID string            `json:"conversationId,omitempty"`
}

// CodingClassifier reports whether an agent id belongs to the coding phase.
type CodingClassifier func(agentID string) bool

// CreateFromPlan starts a state with every plan step pending.
func CreateFromPlan(plan Plan, userRequest, conversationID string, now time.Time) *PlanState {
	return &PlanState{
		Plan:           plan,
		AgentOutputs:   make(map[string]string),
		CompletedSteps: []string{},
		PendingSteps:   plan.AgentIDs(),
		CreatedAt:      now,
		UpdatedAt:      now,
		UserRequest:    userRequest,
		ConversationID: conversationID,
	}
}

// MarkComplete records output for agentID and moves it from pending to completed.
func (s *PlanState) MarkComplete(agentID, output string, now time.Time) {
	if s.AgentOutputs == nil {
		s.AgentOutputs = make(map[string]string)
	}
	s.AgentOutputs[agentID] = output
	s.PendingSteps = slices.DeleteFunc(s.PendingSteps, func(id string) bool { return id == agentID })
	if !slices.Contains(s.CompletedSteps, agentID) {
		s.CompletedSteps = append(s.CompletedSteps, agentID)
	}
	s.UpdatedAt = now
}

// IsComplete reports whether agentID has already run.
func (s *PlanState) IsComplete(agentID string) bool {
	return slices.Contains(s.CompletedSteps, agentID)
}

// PendingCodingSteps returns pending coding-phase ids in plan order.
// A nil classifier falls back to the built-in coding set.
func (s *PlanState) PendingCodingSteps(isCoding CodingClassifier) []string {
	if isCoding == nil {
		isCoding = IsDefaultCodingStep
	}
	var out []string
	for _, id := range s.PendingSteps {
		if isCoding(id) {
			out = append(out, id)
		}
	}
	return out
}

// HasPendingCodingSteps reports whether any pending step is a coding step.
func (s *PlanState) HasPendingCodingSteps(isCoding CodingClassifier) bool {
	return len(s.PendingCodingSteps(isCoding)) > 0
}

// OrderedOutputs returns completed outputs keyed by agent id along with the
// completion order, suitable for seeding a pipeline run.
func (s *PlanState) OrderedOutputs() (map[string]string, []string) {
	outputs := make(map[string]string, len(s.AgentOutputs))
	order := make([]string, 0, len(s.CompletedSteps))
	for _, id := range s.CompletedSteps {
		out, ok := s.AgentOutputs[id]
		if !ok {
			continue
		}
		outputs[id] = out
		order = append(order, id)
	}
	return outputs, order
}

// Consistent checks that completed and pending steps are disjoint and
// together cover every step of the plan.
func (s *PlanState) Consistent() bool {
	for _, id := range s.PendingSteps {
		if slices.Contains(s.CompletedSteps, id) {
			return false
		}
	}
	for _, id := range s.Plan.AgentIDs() {
		if !slices.Contains(s.PendingSteps, id) && !slices.Contains(s.CompletedSteps, id) {
			return false
		}
	}
	return true
}
