package domain

import (
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
)

// FileWriter writes agent artifacts into the workspace. Failures wrap ErrIO.
type FileWriter interface {
	CreateFile(path, content string) error
	UpdateFile(path, content string) error
}

// ChangeTracker is an audit sink for file writes. Callers ignore its errors.
type ChangeTracker interface {
	RecordChange(path, content string) error
}

// PlanStateRepository persists the plan state document under .crew/plan-state.
type PlanStateRepository interface {
	// SavePlanState overwrites the live state file.
	SavePlanState(state *planning.PlanState) error
	// LoadPlanState returns (nil, nil) when no state exists.
	LoadPlanState() (*planning.PlanState, error)
	// BackupPlanState copies the live file into history and returns the
	// backup name, or "" when there was nothing to back up.
	BackupPlanState() (string, error)
	DeletePlanState() error
	ListHistory() ([]string, error)
	LoadBackup(name string) (*planning.PlanState, error)
}

// FeedbackRepository stores feedback records, one file per record.
type FeedbackRepository interface {
	SaveFeedback(fb *feedback.AgentFeedback) error
	LatestFeedback(agentName string) (*feedback.AgentFeedback, error)
	ListFeedbackAgents() ([]string, error)
}

// StageDumper keeps the raw output of each stage for debugging.
type StageDumper interface {
	DumpStage(stageID, output string) error
}

// WorkspaceLock guards the plan state against concurrent writers.
type WorkspaceLock interface {
	Acquire() (release func() error, err error)
}

// LockRefresher is implemented by locks that go stale unless their holder
// refreshes them during long runs.
type LockRefresher interface {
	Refresh() error
}
