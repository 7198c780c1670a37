package sdk

import "github.com/felixgeelhaar/crew/pkg/domain/feedback"

// Lifecycle values reported by Status.
const (
	LifecycleNoState                 = "no_state"
	LifecyclePlanInProgress          = "plan_in_progress"
	LifecyclePlanCompleteCodePending = "plan_complete_code_pending"
	LifecycleAllComplete             = "all_complete"
)

// Progress is the last progress snapshot of a run.
type Progress struct {
	Status          string  `json:"status"`
	TotalStages     int     `json:"totalStages"`
	CompletedStages int     `json:"completedStages"`
	CurrentStage    int     `json:"currentStage"`
	CurrentAgent    string  `json:"currentAgent,omitempty"`
	Percentage      float64 `json:"percentage"`
	LastError       string  `json:"lastError,omitempty"`
}

// Status is the result of crew_status.
type Status struct {
	Lifecycle   string   `json:"lifecycle"`
	PlanID      string   `json:"planId,omitempty"`
	UserRequest string   `json:"userRequest,omitempty"`
	Completed   []string `json:"completedSteps"`
	Pending     []string `json:"pendingSteps"`
	Progress    Progress `json:"progress"`
}

// CodePending reports whether crew_code has work to resume.
func (s *Status) CodePending() bool {
	return s.Lifecycle == LifecyclePlanCompleteCodePending
}

// AgentFeedback is an agent's self-report after a run.
type AgentFeedback = feedback.AgentFeedback

// AgentIssue is a high or critical issue tagged with its agent.
type AgentIssue = feedback.AgentIssue

// AgentInfo describes a registered agent (crew://agents).
type AgentInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Phase       string `json:"phase"`
}

// SchemaInfo is the crew://schema resource.
type SchemaInfo struct {
	SchemaVersion string   `json:"schema_version"`
	ServerVersion string   `json:"server_version"`
	Tools         []string `json:"tools"`
}
