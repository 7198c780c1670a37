// Package agents holds the concrete agents: a catalog of prompt
// definitions run by one generic artifact agent, and the developer agent
// that turns model output into source files.
package agents

import (
	"sort"
	"strings"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

// Definition is everything that distinguishes one catalog agent from another.
type Definition struct {
	ID          string
	Description string
	Phase       agent.Phase
	// Artifact is the workspace-relative file the agent writes.
	Artifact     string
	System       string
	Instructions string
}

var catalog = []Definition{
	{
		ID:          "analyst",
		Description: "Business analyst: clarifies requirements and scope",
		Phase:       agent.PhasePlan,
		Artifact:    "ANALYSIS.md",
		System:      "You are a senior business analyst.",
		Instructions: `Produce a requirements analysis for the request.
Cover goals, users, functional requirements, non-functional requirements,
assumptions, open questions and an explicit out-of-scope list.`,
	},
	{
		ID:          "architect",
		Description: "Software architect: designs components and technology choices",
		Phase:       agent.PhasePlan,
		Artifact:    "ARCHITECTURE.md",
		System:      "You are a pragmatic software architect.",
		Instructions: `Design the architecture for the request.
Describe components and their responsibilities, data model, interfaces,
technology choices with reasons, and the directory layout of the code.`,
	},
	{
		ID:          "uxdesigner",
		Description: "UX designer: user flows, screens and interaction details",
		Phase:       agent.PhasePlan,
		Artifact:    "UX_DESIGN.md",
		System:      "You are a UX designer who writes precise specifications.",
		Instructions: `Write the UX design for the request.
List the user flows, each screen with its elements and states, empty and
error states, and accessibility considerations.`,
	},
	{
		ID:          "pm",
		Description: "Product manager: milestones, priorities and acceptance criteria",
		Phase:       agent.PhasePlan,
		Artifact:    "PRODUCT_PLAN.md",
		System:      "You are a product manager.",
		Instructions: `Turn the request and the earlier analysis into a product plan.
Give prioritized user stories with acceptance criteria and a milestone breakdown.`,
	},
	{
		ID:          "quickflowdev",
		Description: "Quick flow: a compressed spec-to-tasks pass for small requests",
		Phase:       agent.PhasePlan,
		Artifact:    "QUICK_FLOW.md",
		System:      "You are a full-stack engineer who plans small changes quickly.",
		Instructions: `Write a short technical spec for the request followed by an
ordered task list small enough to implement in one sitting.`,
	},
	{
		ID:          "brainstorm",
		Description: "Brainstorm: divergent ideas for the request",
		Phase:       agent.PhasePlan,
		Artifact:    "BRAINSTORM.md",
		System:      "You are a creative facilitator.",
		Instructions: `Brainstorm at least ten distinct approaches to the request,
each with a one-line pitch and its biggest risk.`,
	},
	{
		ID:          "model",
		Description: "Model: structures the problem space",
		Phase:       agent.PhasePlan,
		Artifact:    "MODEL.md",
		System:      "You are a systems thinker.",
		Instructions: `Model the problem behind the request: entities, relationships,
constraints and the key trade-offs between the brainstormed approaches.`,
	},
	{
		ID:          "decide",
		Description: "Decide: picks an approach and records the decision",
		Phase:       agent.PhasePlan,
		Artifact:    "DECISION.md",
		System:      "You are a decisive technical lead.",
		Instructions: `Decide on one approach for the request. Write it as a decision
record: context, options considered, decision, consequences.`,
	},
	{
		ID:          "act",
		Description: "Act: converts the decision into an action plan",
		Phase:       agent.PhasePlan,
		Artifact:    "ACTION_PLAN.md",
		System:      "You are a delivery lead.",
		Instructions: `Act on the decision: write a step-by-step action plan with owners,
order of work and a definition of done for each step.`,
	},
	{
		ID:          "codereview",
		Description: "Code reviewer: reviews the generated code",
		Phase:       agent.PhaseCode,
		Artifact:    "CODE_REVIEW.md",
		System:      "You are a meticulous code reviewer.",
		Instructions: `Review the code produced by the developer stage. List defects by
severity, risky patterns, missing error handling and concrete fixes.`,
	},
	{
		ID:          "qa",
		Description: "QA engineer: test plan and quality report",
		Phase:       agent.PhaseCode,
		Artifact:    "QA_REPORT.md",
		System:      "You are a QA engineer.",
		Instructions: `Write a QA report for the implementation: test plan, test cases
with expected results, and any bugs you can spot in the code.`,
	},
	{
		ID:          "techwriter",
		Description: "Technical writer: user and developer documentation",
		Phase:       agent.PhaseCode,
		Artifact:    "DOCUMENTATION.md",
		System:      "You are a technical writer.",
		Instructions: `Document the project: overview, installation, usage examples,
configuration and a short developer guide.`,
	},
}

// Catalog returns a copy of all catalog definitions sorted by id.
func Catalog() []Definition {
	out := append([]Definition(nil), catalog...)
	out = append(out, planningDefinition())
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns the definition for id.
func Lookup(id string) (Definition, bool) {
	if id == PlanningID {
		return planningDefinition(), true
	}
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// PlanPhaseIDs lists catalog agents the planning agent may schedule.
func PlanPhaseIDs() []string {
	var ids []string
	for _, d := range catalog {
		if d.Phase == agent.PhasePlan {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// PlanningID is the id of the agent that proposes the plan-phase steps.
const PlanningID = "planning"

func planningDefinition() Definition {
	return Definition{
		ID:          PlanningID,
		Description: "Planner: chooses which planning agents run for the request",
		Phase:       agent.PhasePlan,
		Artifact:    "PLAN.md",
		System:      "You are an engineering manager assembling a team. Reply with JSON only.",
		Instructions: `Choose the planning agents needed for the request, in execution order.
Available agents: ` + strings.Join(PlanPhaseIDs(), ", ") + `.
Reply with a single JSON object of the form
{"steps":[{"agentId":"analyst","description":"why this agent is needed"}]}`,
	}
}
