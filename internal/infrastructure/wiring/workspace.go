package wiring

import (
	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

// Workspace bundles core infrastructure dependencies.
type Workspace struct {
	Root     string
	Repo     *storage.FilesystemRepository
	Changes  *storage.ChangeLog
	Feedback *application.FeedbackService
	Lock     domain.WorkspaceLock
}

// NewWorkspace opens the .crew directory under root. The plan-state lock
// is nil when cfg disables it.
func NewWorkspace(root string, cfg *config.Config, logger *zap.Logger) *Workspace {
	repo := storage.NewFilesystemRepository(root)

	var lock domain.WorkspaceLock
	if cfg.State.Lock {
		lock = storage.NewFileLock(repo, cfg.LockStaleAfter())
	}

	return &Workspace{
		Root:     root,
		Repo:     repo,
		Changes:  storage.NewChangeLog(repo),
		Feedback: application.NewFeedbackService(repo, logger),
		Lock:     lock,
	}
}
