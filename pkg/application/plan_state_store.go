package application

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
)

// PlanStateStore keeps the current plan state in memory and on disk.
// SavePlanState and ClearPlanState back up the live file first, ignoring
// backup failures; MarkStepComplete writes directly without a backup.
type PlanStateStore struct {
	repo     domain.PlanStateRepository
	isCoding planning.CodingClassifier
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *planning.PlanState
}

// NewPlanStateStore builds a store. A nil classifier uses the built-in coding set.
func NewPlanStateStore(repo domain.PlanStateRepository, isCoding planning.CodingClassifier, logger *zap.Logger) *PlanStateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if isCoding == nil {
		isCoding = planning.IsDefaultCodingStep
	}
	return &PlanStateStore{repo: repo, isCoding: isCoding, logger: logger.Named("plan_state"), now: time.Now}
}

// CreateFromPlan starts a new state with every step pending and makes it current.
func (s *PlanStateStore) CreateFromPlan(plan *planning.Plan, userRequest, conversationID string) *planning.PlanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = planning.CreateFromPlan(*plan, userRequest, conversationID, s.now().UTC())
	return s.current
}

// SavePlanState backs up the previous state, then overwrites it.
func (s *PlanStateStore) SavePlanState(state *planning.PlanState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, err := s.repo.BackupPlanState(); err != nil {
		s.logger.Warn("plan state backup failed", zap.Error(err))
	} else if name != "" {
		s.logger.Debug("plan state backed up", zap.String("backup", name))
	}

	state.UpdatedAt = s.now().UTC()
	if err := s.repo.SavePlanState(state); err != nil {
		return fmt.Errorf("save plan state: %w", err)
	}
	s.current = state
	return nil
}

// LoadPlanState returns the persisted state, or nil when there is none or
// it cannot be read.
func (s *PlanStateStore) LoadPlanState() *planning.PlanState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.repo.LoadPlanState()
	if err != nil {
		s.logger.Warn("plan state unreadable, starting fresh", zap.Error(err))
		state = nil
	}
	s.current = state
	return state
}

// MarkStepComplete records a stage output on the current state. Without a
// current state it does nothing.
func (s *PlanStateStore) MarkStepComplete(agentID, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	s.current.MarkComplete(agentID, output, s.now().UTC())
	if err := s.repo.SavePlanState(s.current); err != nil {
		return fmt.Errorf("mark %s complete: %w", agentID, err)
	}
	return nil
}

// HasPendingCodingSteps reports whether the current state, loading it if
// needed, still has coding work.
func (s *PlanStateStore) HasPendingCodingSteps() bool {
	state := s.Current()
	if state == nil {
		state = s.LoadPlanState()
	}
	return state != nil && state.HasPendingCodingSteps(s.isCoding)
}

// ClearPlanState backs up and removes the live state.
func (s *PlanStateStore) ClearPlanState() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.BackupPlanState(); err != nil {
		s.logger.Warn("plan state backup failed", zap.Error(err))
	}
	if err := s.repo.DeletePlanState(); err != nil {
		return fmt.Errorf("clear plan state: %w", err)
	}
	s.current = nil
	return nil
}

// Current returns the in-memory state without touching disk.
func (s *PlanStateStore) Current() *planning.PlanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Lifecycle infers the project phase from the current state.
func (s *PlanStateStore) Lifecycle() planning.Lifecycle {
	return planning.InferLifecycle(s.Current(), s.isCoding)
}

// IsCoding exposes the store's coding classifier.
func (s *PlanStateStore) IsCoding(agentID string) bool {
	return s.isCoding(agentID)
}

// History lists backup names, oldest first.
func (s *PlanStateStore) History() ([]string, error) {
	return s.repo.ListHistory()
}

// LoadBackup reads one backup by name.
func (s *PlanStateStore) LoadBackup(name string) (*planning.PlanState, error) {
	return s.repo.LoadBackup(name)
}
