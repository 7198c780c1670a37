// Package mcp exposes the orchestrator, the pipeline and feedback to MCP
// clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mcp-go"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

type Server struct {
	mcpServer    *mcp.Server
	services     *wiring.AppServices
	orchestrator *application.OrchestratorService
	pipeline     *application.PipelineService
	feedback     *application.FeedbackService
	planState    *application.PlanStateStore
	logger       *zap.Logger
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are logged, not returned.
func mcpErr(friendly string) error {
	return fmt.Errorf("%s", friendly)
}

// NewServer registers crew's tools and resources on a new MCP server.
func NewServer(services *wiring.AppServices) *Server {
	info := mcp.ServerInfo{
		Name:    "crew",
		Version: Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("Crew MCP Server"),
			mcp.WithDescription("Crew runs a pipeline of LLM agents that plan and then build a project."),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Call crew_plan with a request, then crew_code to build it. Use crew_status and crew_feedback to inspect progress."),
		),
		services:     services,
		orchestrator: services.Orchestrator,
		pipeline:     services.Pipeline,
		feedback:     services.Workspace.Feedback,
		planState:    services.PlanState,
		logger:       services.Logger.Named("mcp"),
	}

	s.registerTools()
	s.registerResources()
	return s
}

// FlexBool accepts both boolean and string JSON values.
type FlexBool bool

func (fb *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*fb = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fb = FlexBool(s == "true" || s == "1" || s == "yes")
		return nil
	}
	return fmt.Errorf("expected boolean or string, got %s", string(data))
}

type PlanArgs struct {
	Request  string   `json:"request" jsonschema:"description=What the crew should plan and build"`
	EditMode FlexBool `json:"edit_mode,omitempty" jsonschema:"description=Change the existing code base instead of starting fresh"`
}

type CodeArgs struct {
	Request  string   `json:"request,omitempty" jsonschema:"description=Request for a fresh coding run; defaults to the planned request"`
	EditMode FlexBool `json:"edit_mode,omitempty" jsonschema:"description=Change the existing code base instead of starting fresh"`
}

type RunArgs struct {
	Request string   `json:"request" jsonschema:"description=The request handed to every stage"`
	Stages  []string `json:"stages,omitempty" jsonschema:"description=Agent ids to run in order; empty runs the default plan and code stages"`
}

type FeedbackArgs struct {
	Agent string `json:"agent,omitempty" jsonschema:"description=Agent id; empty returns the summary across all agents"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("crew_plan").
		Description("Run the planning stages for a request and persist the plan state").
		Handler(s.handlePlan)

	s.mcpServer.Tool("crew_code").
		Description("Resume the pending coding stages, or start a coding run when nothing is pending").
		Handler(s.handleCode)

	s.mcpServer.Tool("crew_run").
		Description("Run an explicit list of agents as one pipeline without touching the plan state").
		Handler(s.handleRun)

	s.mcpServer.Tool("crew_status").
		Description("Report the plan lifecycle and completed and pending stages").
		Handler(s.handleStatus)

	s.mcpServer.Tool("crew_feedback").
		Description("Return an agent's latest feedback, or the summary across agents").
		Handler(s.handleFeedback)

	s.mcpServer.Tool("crew_critical_issues").
		Description("List high and critical issues from every agent's latest feedback").
		Handler(s.handleCriticalIssues)

	s.mcpServer.Tool("crew_history").
		Description("List plan state backups, oldest first").
		Handler(s.handleHistory)

	s.mcpServer.Tool("crew_reset").
		Description("Back up and delete the plan state").
		Handler(s.handleReset)
}

func (s *Server) handlePlan(ctx context.Context, args PlanArgs) (string, error) {
	if strings.TrimSpace(args.Request) == "" {
		return "", mcpErr("A request is required.")
	}
	ac := s.services.NewContext(args.Request, agent.ModePlan, bool(args.EditMode))
	out, err := s.orchestrator.ExecutePlan(ctx, ac)
	if err != nil {
		return "", s.runErr("plan", err)
	}
	return out, nil
}

func (s *Server) handleCode(ctx context.Context, args CodeArgs) (string, error) {
	ac := s.services.NewContext(args.Request, agent.ModeCode, bool(args.EditMode))
	out, err := s.orchestrator.ExecuteCode(ctx, ac)
	if err != nil {
		return "", s.runErr("code", err)
	}
	return out, nil
}

func (s *Server) handleRun(ctx context.Context, args RunArgs) (any, error) {
	if strings.TrimSpace(args.Request) == "" {
		return nil, mcpErr("A request is required.")
	}
	ac := s.services.NewContext(args.Request, agent.ModePlan, false)
	outputs, err := s.pipeline.RunPipeline(ctx, ac, args.Stages)
	if err != nil {
		return nil, s.runErr("run", err)
	}
	return outputs, nil
}

func (s *Server) handleStatus(ctx context.Context, args struct{}) (any, error) {
	return s.orchestrator.Status(), nil
}

func (s *Server) handleFeedback(ctx context.Context, args FeedbackArgs) (any, error) {
	if args.Agent == "" {
		summary, err := s.feedback.GetFeedbackSummary()
		if err != nil {
			s.logger.Error("feedback summary failed", zap.Error(err))
			return nil, mcpErr("Failed to read feedback.")
		}
		return summary, nil
	}
	fb, err := s.feedback.GetLatestFeedback(args.Agent)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Failed to read feedback for %q. Agent ids are lowercase letters, digits, '-' and '_'.", args.Agent))
	}
	if fb == nil {
		return nil, mcpErr(fmt.Sprintf("No feedback recorded for %q yet.", args.Agent))
	}
	return fb, nil
}

func (s *Server) handleCriticalIssues(ctx context.Context, args struct{}) (any, error) {
	issues, err := s.feedback.GetCriticalIssues()
	if err != nil {
		s.logger.Error("critical issues failed", zap.Error(err))
		return nil, mcpErr("Failed to read feedback.")
	}
	return issues, nil
}

func (s *Server) handleHistory(ctx context.Context, args struct{}) (any, error) {
	names, err := s.planState.History()
	if err != nil {
		s.logger.Error("history failed", zap.Error(err))
		return nil, mcpErr("Failed to list plan state history.")
	}
	return names, nil
}

func (s *Server) handleReset(ctx context.Context, args struct{}) (string, error) {
	if err := s.orchestrator.Reset(ctx); err != nil {
		return "", s.runErr("reset", err)
	}
	return "Plan state cleared; a backup was kept in history.", nil
}

func (s *Server) runErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrWorkspaceLocked):
		return mcpErr("Another crew run holds the workspace lock. Try again when it finishes.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return mcpErr("The run was cancelled; completed stages were saved.")
	}
	s.logger.Error("tool failed", zap.String("op", op), zap.Error(err))
	return mcpErr(fmt.Sprintf("The %s run failed. Check the crew log for details.", op))
}

func (s *Server) Start() error {
	return s.StartStdio()
}

func (s *Server) StartStdio() error {
	return s.ServeStdio(context.Background())
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}
