package application_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

func newFeedbackService(t *testing.T) *application.FeedbackService {
	t.Helper()
	return application.NewFeedbackService(storage.NewFilesystemRepository(t.TempDir()), nil)
}

func TestFeedbackService_CriticalIssuesInRecordedOrder(t *testing.T) {
	svc := newFeedbackService(t)
	ctx := context.Background()

	_, err := svc.CreateFeedback(ctx, &feedback.AgentFeedback{
		AgentName: "qa",
		IssuesEncountered: []feedback.Issue{
			{Severity: feedback.SeverityLow, Description: "typo"},
			{Severity: feedback.SeverityCritical, Description: "data loss"},
			{Severity: feedback.SeverityMedium, Description: "slow"},
			{Severity: feedback.SeverityHigh, Description: "crash"},
		},
	})
	require.NoError(t, err)

	issues, err := svc.GetCriticalIssues()
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "data loss", issues[0].Description)
	assert.Equal(t, "crash", issues[1].Description)
	assert.Equal(t, "qa", issues[0].AgentName)
}

func TestFeedbackService_LatestByTimestamp(t *testing.T) {
	svc := newFeedbackService(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := svc.CreateFeedback(ctx, &feedback.AgentFeedback{
			AgentName:      "architect",
			Timestamp:      base.Add(offset),
			CompletedTasks: []string{offset.String()},
		})
		require.NoError(t, err)
	}

	latest, err := svc.GetLatestFeedback("architect")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Timestamp.Equal(base.Add(2*time.Hour)))

	none, err := svc.GetLatestFeedback("pm")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFeedbackService_SummaryCoversEveryAgent(t *testing.T) {
	svc := newFeedbackService(t)
	ctx := context.Background()
	for _, name := range []string{"qa", "analyst"} {
		_, err := svc.CreateFeedback(ctx, &feedback.AgentFeedback{AgentName: name, CompletedTasks: []string{"did " + name}})
		require.NoError(t, err)
	}

	summary, err := svc.GetFeedbackSummary()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(summary, "# Agent Feedback Summary"))
	assert.Less(t, strings.Index(summary, "## analyst"), strings.Index(summary, "## qa"))
	assert.Contains(t, summary, "did qa")
}

func TestFeedbackService_StampsMissingTimestamp(t *testing.T) {
	svc := newFeedbackService(t)

	fb, err := svc.CreateFeedback(context.Background(), &feedback.AgentFeedback{AgentName: "pm"})

	require.NoError(t, err)
	assert.False(t, fb.Timestamp.IsZero())
}

func TestFeedbackService_RejectsBadAgentName(t *testing.T) {
	svc := newFeedbackService(t)

	_, err := svc.CreateFeedback(context.Background(), &feedback.AgentFeedback{AgentName: "../escape"})

	assert.Error(t, err)
}
