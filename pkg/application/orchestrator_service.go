package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/agents"
	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
	"github.com/felixgeelhaar/crew/pkg/domain/progress"
)

// OrchestratorID is the registry id of the orchestrator agent.
const OrchestratorID = "orchestrator"

// ErrNestedOrchestrator is returned when the orchestrator is scheduled as
// a stage of another pipeline.
var ErrNestedOrchestrator = errors.New("orchestrator cannot run as a pipeline stage")

// OrchestratorConfig holds the orchestrator's policy switches.
type OrchestratorConfig struct {
	// GeneratePlan asks the planning agent which plan-phase agents to run.
	GeneratePlan bool
	// ClearOnComplete removes the plan state once nothing is pending.
	ClearOnComplete bool
}

// Status describes the workspace's plan state.
type Status struct {
	Lifecycle   planning.Lifecycle `json:"lifecycle"`
	PlanID      string             `json:"planId,omitempty"`
	UserRequest string             `json:"userRequest,omitempty"`
	Completed   []string           `json:"completedSteps"`
	Pending     []string           `json:"pendingSteps"`
	Progress    progress.State     `json:"progress"`
}

// OrchestratorService splits a request into a plan phase and a code phase
// and persists progress between them, so the code phase can resume in a
// later process.
type OrchestratorService struct {
	registry *agent.Registry
	pipeline *PipelineService
	store    *PlanStateStore
	feedback *FeedbackService
	lock     domain.WorkspaceLock
	cfg      OrchestratorConfig
	logger   *zap.Logger

	mu       sync.Mutex
	last     progress.State
	listener progress.Listener
}

// NewOrchestratorService wires the orchestrator. feedback and lock may be nil.
func NewOrchestratorService(registry *agent.Registry, pipeline *PipelineService, store *PlanStateStore,
	fb *FeedbackService, lock domain.WorkspaceLock, cfg OrchestratorConfig, logger *zap.Logger) *OrchestratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestratorService{
		registry: registry,
		pipeline: pipeline,
		store:    store,
		feedback: fb,
		lock:     lock,
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
	}
}

// SetProgressListener forwards progress snapshots of every run.
func (s *OrchestratorService) SetProgressListener(l progress.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

func (s *OrchestratorService) ID() string         { return OrchestratorID }
func (s *OrchestratorService) Phase() agent.Phase { return agent.PhasePlan }
func (s *OrchestratorService) Description() string {
	return "Orchestrator: runs the plan phase or resumes the code phase"
}

// Execute dispatches on the context's mode, so the orchestrator can be
// driven like any other agent.
func (s *OrchestratorService) Execute(ctx context.Context, ac *agent.Context) (string, error) {
	if ac.Stage != "" {
		return "", ErrNestedOrchestrator
	}
	if ac.Mode == agent.ModeCode {
		return s.ExecuteCode(ctx, ac)
	}
	return s.ExecutePlan(ctx, ac)
}

// ExecutePlan runs the plan-phase stages and persists a state in which the
// coding stages are pending.
func (s *OrchestratorService) ExecutePlan(ctx context.Context, ac *agent.Context) (string, error) {
	release, err := s.acquire()
	if err != nil {
		return "", err
	}
	defer s.release(release)

	plan := s.buildPlan(ctx, ac)
	var planSteps []string
	for _, id := range plan.AgentIDs() {
		if !s.store.IsCoding(id) {
			planSteps = append(planSteps, id)
		}
	}
	s.logger.Info("plan phase starting", zap.String("plan_id", plan.ID), zap.Strings("stages", planSteps))

	state := s.store.CreateFromPlan(plan, ac.UserRequest, ac.ConversationID)
	next := *ac
	next.Mode = agent.ModePlan
	outputs, runErr := s.pipeline.RunPipeline(ctx, &next, planSteps,
		WithStageCallback(func(id, out string) {
			state.MarkComplete(id, out, s.store.now().UTC())
			s.refreshLock()
		}),
		WithProgressListener(s.onProgress),
	)

	if err := s.store.SavePlanState(state); err != nil {
		return s.summary("Plan Phase", planSteps, outputs, state), err
	}
	return s.summary("Plan Phase", planSteps, outputs, state), runErr
}

// ExecuteCode resumes pending coding stages, seeded with the outputs of
// everything already completed. Without pending coding work it starts a
// fresh coding plan.
func (s *OrchestratorService) ExecuteCode(ctx context.Context, ac *agent.Context) (string, error) {
	release, err := s.acquire()
	if err != nil {
		return "", err
	}
	defer s.release(release)

	state := s.store.LoadPlanState()
	if state == nil || !state.HasPendingCodingSteps(s.store.IsCoding) {
		state = s.startCodingPlan(state, ac)
		if err := s.store.SavePlanState(state); err != nil {
			return "", err
		}
	}

	stages := state.PendingCodingSteps(s.store.IsCoding)
	seed, order := state.OrderedOutputs()
	s.logger.Info("code phase starting", zap.String("plan_id", state.Plan.ID), zap.Strings("stages", stages))

	next := *ac
	next.Mode = agent.ModeCode
	if next.UserRequest == "" {
		next.UserRequest = state.UserRequest
	}
	outputs, runErr := s.pipeline.RunPipeline(ctx, &next, stages,
		WithSeedOutputs(seed, order),
		WithStageCallback(func(id, out string) {
			if err := s.store.MarkStepComplete(id, out); err != nil {
				s.logger.Error("stage not recorded", zap.String("stage", id), zap.Error(err))
			}
			s.refreshLock()
		}),
		WithProgressListener(s.onProgress),
	)

	final := s.store.Current()
	if s.cfg.ClearOnComplete && runErr == nil && planning.InferLifecycle(final, s.store.IsCoding) == planning.AllComplete {
		if err := s.store.ClearPlanState(); err != nil {
			s.logger.Warn("plan state not cleared", zap.Error(err))
		}
	}
	return s.summary("Code Phase", stages, outputs, final), runErr
}

// startCodingPlan builds a state for the default coding stages. A
// previous, finished state contributes its outputs as context.
func (s *OrchestratorService) startCodingPlan(prev *planning.PlanState, ac *agent.Context) *planning.PlanState {
	plan := planning.NewPlan(planning.DefaultCodeSteps...)
	request := ac.UserRequest
	if request == "" && prev != nil {
		request = prev.UserRequest
	}
	state := s.store.CreateFromPlan(plan, request, ac.ConversationID)
	if prev != nil {
		for _, id := range prev.CompletedSteps {
			if s.store.IsCoding(id) {
				continue
			}
			if out, ok := prev.AgentOutputs[id]; ok {
				state.AgentOutputs[id] = out
				state.CompletedSteps = append(state.CompletedSteps, id)
			}
		}
	}
	s.logger.Info("no pending coding work, starting a coding plan", zap.Bool("resumed_context", prev != nil))
	return state
}

// CodingClassifier classifies registered agents by their phase and falls
// back to the built-in coding set for unknown ids.
func CodingClassifier(reg *agent.Registry) planning.CodingClassifier {
	return func(id string) bool {
		if a, ok := reg.Get(id); ok {
			return a.Phase() == agent.PhaseCode
		}
		return planning.IsDefaultCodingStep(id)
	}
}

// Status reports the persisted lifecycle and the last run's progress.
func (s *OrchestratorService) Status() Status {
	state := s.store.LoadPlanState()
	s.mu.Lock()
	st := Status{Lifecycle: planning.InferLifecycle(state, s.store.IsCoding), Progress: s.last}
	s.mu.Unlock()
	if state != nil {
		st.PlanID = state.Plan.ID
		st.UserRequest = state.UserRequest
		st.Completed = append([]string{}, state.CompletedSteps...)
		st.Pending = append([]string{}, state.PendingSteps...)
	}
	return st
}

// Reset clears the plan state under the workspace lock.
func (s *OrchestratorService) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release(release)
	return s.store.ClearPlanState()
}

// buildPlan asks the planning agent for the plan-phase steps when enabled,
// falling back to the default plan. Default coding steps are appended
// unless the generated plan already names coding steps.
func (s *OrchestratorService) buildPlan(ctx context.Context, ac *agent.Context) *planning.Plan {
	plan := s.generatePlan(ctx, ac)
	if plan == nil {
		plan = planning.NewPlan(planning.DefaultPlanSteps...)
	}
	hasCoding := false
	for _, id := range plan.AgentIDs() {
		if s.store.IsCoding(id) {
			hasCoding = true
			break
		}
	}
	if !hasCoding {
		plan.Append(planning.DefaultCodeSteps...)
	}
	return plan
}

func (s *OrchestratorService) generatePlan(ctx context.Context, ac *agent.Context) *planning.Plan {
	if !s.cfg.GeneratePlan {
		return nil
	}
	planner, ok := s.registry.Get(agents.PlanningID)
	if !ok {
		return nil
	}
	out, err := invoke(ctx, planner, ac.WithStage(agents.PlanningID, ac.PreviousOutputs, ac.CompletedStages))
	if err != nil {
		s.logger.Warn("planning agent failed, using default plan", zap.Error(err))
		return nil
	}
	plan, err := planning.ParsePlan(out)
	if err != nil {
		s.logger.Warn("plan rejected, using default plan", zap.Error(err))
		return nil
	}
	plan = plan.Filter(func(id string) bool {
		if id == agents.PlanningID || id == OrchestratorID {
			return false
		}
		_, ok := s.registry.Get(id)
		return ok
	})
	if len(plan.Steps) == 0 {
		s.logger.Warn("plan names no known agents, using default plan")
		return nil
	}
	return plan
}

func (s *OrchestratorService) summary(title string, stages []string, outputs map[string]string, state *planning.PlanState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Summary\n", title)
	for _, id := range stages {
		out, ok := outputs[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", id, strings.TrimSpace(out))
	}
	if state != nil {
		if pending := state.PendingCodingSteps(s.store.IsCoding); len(pending) > 0 {
			b.WriteString("\n## Pending Coding Stages\n\n")
			for _, id := range pending {
				fmt.Fprintf(&b, "- %s\n", id)
			}
		}
	}
	if s.feedback != nil {
		issues, err := s.feedback.GetCriticalIssues()
		if err != nil {
			s.logger.Warn("critical issues unavailable", zap.Error(err))
		} else if len(issues) > 0 {
			fmt.Fprintf(&b, "\n**Critical issues:** %d (see the feedback summary)\n", len(issues))
		}
	}
	return b.String()
}

func (s *OrchestratorService) onProgress(p progress.State) {
	s.mu.Lock()
	s.last = p
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		l(p)
	}
}

func (s *OrchestratorService) acquire() (func() error, error) {
	if s.lock == nil {
		return func() error { return nil }, nil
	}
	release, err := s.lock.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	return release, nil
}

// refreshLock keeps a held lock from looking stale between stages.
func (s *OrchestratorService) refreshLock() {
	r, ok := s.lock.(domain.LockRefresher)
	if !ok {
		return
	}
	if err := r.Refresh(); err != nil {
		s.logger.Warn("workspace lock not refreshed", zap.Error(err))
	}
}

func (s *OrchestratorService) release(release func() error) {
	if err := release(); err != nil {
		s.logger.Warn("workspace lock not released", zap.Error(err))
	}
}
