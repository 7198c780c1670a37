package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/ai"
	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

// TextGenerator is the slice of the LLM service agents depend on.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error)
}

// Deps are the collaborators shared by every agent of a workspace.
type Deps struct {
	LLM TextGenerator
	// Files overrides the writer. When nil, agents write under
	// Context.WorkspaceRoot and skip writing if that is empty.
	Files    domain.FileWriter
	Changes  domain.ChangeTracker
	Feedback feedback.Sink
	Logger   *zap.Logger
	Scan     storage.ScanLimits
}

// stageChangeTracker is implemented by change logs that attribute writes to a stage.
type stageChangeTracker interface {
	RecordStageChange(stage, path, content string) error
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Deps) writer(ac *agent.Context) domain.FileWriter {
	if d.Files != nil {
		return d.Files
	}
	if ac.WorkspaceRoot == "" {
		return nil
	}
	return storage.NewWorkspaceWriter(ac.WorkspaceRoot)
}

// track records a write. Tracker failures are logged and otherwise ignored.
func (d Deps) track(stage, path, content string) {
	if d.Changes == nil {
		return
	}
	var err error
	if st, ok := d.Changes.(stageChangeTracker); ok {
		err = st.RecordStageChange(stage, path, content)
	} else {
		err = d.Changes.RecordChange(path, content)
	}
	if err != nil {
		d.logger().Debug("change not recorded", zap.String("path", path), zap.Error(err))
	}
}

// flush writes the recorder's record, logging rather than returning failures.
func (d Deps) flush(ctx context.Context, rec *feedback.Recorder, agentID string) {
	if _, err := rec.Flush(ctx); err != nil {
		d.logger().Warn("feedback not saved", zap.String("agent", agentID), zap.Error(err))
	}
}
