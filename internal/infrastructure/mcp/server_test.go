package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/agents"
	infraai "github.com/felixgeelhaar/crew/pkg/ai"
	domainai "github.com/felixgeelhaar/crew/pkg/domain/ai"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Retry.DelayMS = 0
	services, err := wiring.BuildAppServices(root,
		wiring.WithConfig(&cfg),
		wiring.WithLogger(zap.NewNop()),
		wiring.WithProvider(&infraai.MockProvider{Respond: func(domainai.CompletionRequest) string {
			return agents.FormatFiles([]agents.File{{Name: "app.py", Content: "print('hi')"}})
		}}),
	)
	require.NoError(t, err)
	return NewServer(services), root
}

func TestServer_RegistersTools(t *testing.T) {
	s, _ := newTestServer(t)

	var names []string
	for _, tool := range s.mcpServer.Tools() {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"crew_plan", "crew_code", "crew_run", "crew_status",
		"crew_feedback", "crew_critical_issues", "crew_history", "crew_reset",
	}, names)
}

func TestServer_PlanCodeStatusReset(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handlePlan(ctx, PlanArgs{Request: "  "})
	require.Error(t, err)

	out, err := s.handlePlan(ctx, PlanArgs{Request: "A todo app"})
	require.NoError(t, err)
	assert.Contains(t, out, "# Plan Phase Summary")

	st, err := s.handleStatus(ctx, struct{}{})
	require.NoError(t, err)
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(raw), string(planning.PlanCompleteCodePending))

	out, err = s.handleCode(ctx, CodeArgs{})
	require.NoError(t, err)
	assert.Contains(t, out, "# Code Phase Summary")

	msg, err := s.handleReset(ctx, struct{}{})
	require.NoError(t, err)
	assert.Contains(t, msg, "cleared")
	assert.Equal(t, planning.NoState, s.orchestrator.Status().Lifecycle)

	history, err := s.handleHistory(ctx, struct{}{})
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestServer_Run(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleRun(context.Background(), RunArgs{Request: "x", Stages: []string{"analyst", "ghost"}})
	require.NoError(t, err)
	outputs, ok := res.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "Agent ghost missing", outputs["ghost"])
	assert.NotEmpty(t, outputs["analyst"])

	_, err = s.handleRun(context.Background(), RunArgs{})
	assert.Error(t, err)
}

func TestServer_Feedback(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleRun(ctx, RunArgs{Request: "x", Stages: []string{"analyst"}})
	require.NoError(t, err)

	summary, err := s.handleFeedback(ctx, FeedbackArgs{})
	require.NoError(t, err)
	assert.Contains(t, summary, "analyst")

	rec, err := s.handleFeedback(ctx, FeedbackArgs{Agent: "analyst"})
	require.NoError(t, err)
	fb, ok := rec.(*feedback.AgentFeedback)
	require.True(t, ok)
	assert.Equal(t, "analyst", fb.AgentName)

	_, err = s.handleFeedback(ctx, FeedbackArgs{Agent: "qa"})
	assert.ErrorContains(t, err, "No feedback")

	_, err = s.handleFeedback(ctx, FeedbackArgs{Agent: "../etc"})
	assert.Error(t, err)

	issues, err := s.handleCriticalIssues(ctx, struct{}{})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestServer_PlanWhileLocked(t *testing.T) {
	s, root := newTestServer(t)

	other := storage.NewFileLock(storage.NewFilesystemRepository(root), 0)
	release, err := other.Acquire()
	require.NoError(t, err)
	defer release()

	_, err = s.handlePlan(context.Background(), PlanArgs{Request: "x"})
	assert.ErrorContains(t, err, "workspace lock")
}

func TestServer_AgentsResource(t *testing.T) {
	s, _ := newTestServer(t)

	byID := map[string]AgentInfo{}
	for _, a := range s.agents() {
		byID[a.ID] = a
	}
	assert.Equal(t, "code", byID[agents.DeveloperID].Phase)
	assert.Equal(t, "plan", byID["architect"].Phase)
	assert.Contains(t, byID, "orchestrator")
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
		err  bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`"yes"`, true, false},
		{`"no"`, false, false},
		{`3`, false, true},
	}
	for _, tt := range tests {
		var fb FlexBool
		err := json.Unmarshal([]byte(tt.in), &fb)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, bool(fb), tt.in)
	}
}

func TestServerServeHTTPReturnsCanceled(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.ServeHTTP(ctx, "127.0.0.1:0"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
