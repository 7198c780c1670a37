package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
)

// FeedbackService persists agent feedback and aggregates each agent's
// latest record. It is the feedback.Sink handed to agents.
type FeedbackService struct {
	repo   domain.FeedbackRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewFeedbackService(repo domain.FeedbackRepository, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{repo: repo, logger: logger.Named("feedback"), now: time.Now}
}

// CreateFeedback stamps and stores one record.
func (s *FeedbackService) CreateFeedback(ctx context.Context, fb *feedback.AgentFeedback) (*feedback.AgentFeedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = s.now().UTC()
	}
	if err := s.repo.SaveFeedback(fb); err != nil {
		return nil, fmt.Errorf("save feedback for %s: %w", fb.AgentName, err)
	}
	s.logger.Debug("feedback recorded",
		zap.String("agent", fb.AgentName),
		zap.Int("issues", len(fb.IssuesEncountered)),
	)
	return fb, nil
}

// GetLatestFeedback returns the newest record for agentName, or nil.
func (s *FeedbackService) GetLatestFeedback(agentName string) (*feedback.AgentFeedback, error) {
	return s.repo.LatestFeedback(agentName)
}

// LatestAll returns the latest record of every agent, ordered by agent name.
func (s *FeedbackService) LatestAll() ([]*feedback.AgentFeedback, error) {
	agents, err := s.repo.ListFeedbackAgents()
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	var records []*feedback.AgentFeedback
	for _, name := range agents {
		fb, err := s.repo.LatestFeedback(name)
		if err != nil {
			return nil, fmt.Errorf("latest feedback for %s: %w", name, err)
		}
		if fb != nil {
			records = append(records, fb)
		}
	}
	return records, nil
}

// GetFeedbackSummary renders every agent's latest record as markdown.
func (s *FeedbackService) GetFeedbackSummary() (string, error) {
	records, err := s.LatestAll()
	if err != nil {
		return "", err
	}
	return feedback.RenderSummary(records), nil
}

// GetCriticalIssues returns high and critical issues from every agent's
// latest record, agent by agent, in recorded order.
func (s *FeedbackService) GetCriticalIssues() ([]feedback.AgentIssue, error) {
	records, err := s.LatestAll()
	if err != nil {
		return nil, err
	}
	return feedback.CriticalIssues(records), nil
}
