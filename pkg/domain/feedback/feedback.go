// Package feedback models the structured self-report every agent writes
// after it runs, and the cross-agent views built from those reports.
package feedback

import (
	"fmt"
	"strings"
	"time"
)

// Severity grades an issue an agent ran into.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps a string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Blocking reports whether the severity is high or critical.
func (s Severity) Blocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Icon is the marker used in rendered summaries.
func (s Severity) Icon() string {
	switch s {
	case SeverityCritical:
		return "🔴"
	case SeverityHigh:
		return "🟠"
	case SeverityMedium:
		return "🟡"
	case SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

// Issue is one problem recorded by an agent.
type Issue struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Context     string   `json:"context,omitempty"`
}

// AgentFeedback is an immutable record of one agent invocation.
type AgentFeedback struct {
	AgentName         string    `json:"agentName"`
	Timestamp         time.Time `json:"timestamp"`
	CompletedTasks    []string  `json:"completedTasks"`
	RemainingWork     []string  `json:"remainingWork"`
	IssuesEncountered []Issue   `json:"issuesEncountered"`
	Suggestions       []string  `json:"suggestions"`
	NextSteps         []string  `json:"nextSteps"`
}

// BlockingIssues returns the critical and high issues in recorded order.
func (f *AgentFeedback) BlockingIssues() []Issue {
	var out []Issue
	for _, issue := range f.IssuesEncountered {
		if issue.Severity.Blocking() {
			out = append(out, issue)
		}
	}
	return out
}

// AgentIssue ties an issue to the agent that reported it.
type AgentIssue struct {
	AgentName string `json:"agentName"`
	Issue
}

// CriticalIssues concatenates the blocking issues of each record in the
// order the records are given.
func CriticalIssues(records []*AgentFeedback) []AgentIssue {
	var out []AgentIssue
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, issue := range rec.BlockingIssues() {
			out = append(out, AgentIssue{AgentName: rec.AgentName, Issue: issue})
		}
	}
	return out
}
