// Package wiring assembles crew's services for a workspace root.
package wiring

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/internal/infrastructure/logging"
	"github.com/felixgeelhaar/crew/internal/infrastructure/telemetry"
	"github.com/felixgeelhaar/crew/pkg/agents"
	infraai "github.com/felixgeelhaar/crew/pkg/ai"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	domainai "github.com/felixgeelhaar/crew/pkg/domain/ai"
	"github.com/felixgeelhaar/crew/pkg/domain/events"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

// AppServices exposes the application layer services wired together with a workspace.
type AppServices struct {
	Config       *config.Config
	Logger       *zap.Logger
	Workspace    *Workspace
	LLM          *infraai.Service
	Registry     *agent.Registry
	Events       *events.EventDispatcher
	Metrics      *telemetry.Metrics
	Pipeline     *application.PipelineService
	PlanState    *application.PlanStateStore
	Orchestrator *application.OrchestratorService

	closers []func() error
}

// Option overrides a piece of the default wiring.
type Option func(*buildOptions)

type buildOptions struct {
	cfg            *config.Config
	logger         *zap.Logger
	provider       domainai.Provider
	tracerProvider trace.TracerProvider
}

// WithConfig skips loading .crew/config.yaml.
func WithConfig(cfg *config.Config) Option {
	return func(o *buildOptions) { o.cfg = cfg }
}

// WithLogger replaces the configured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// WithProvider replaces the configured LLM provider.
func WithProvider(p domainai.Provider) Option {
	return func(o *buildOptions) { o.provider = p }
}

// WithTracerProvider traces pipeline runs with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *buildOptions) { o.tracerProvider = tp }
}

// BuildAppServices constructs the agents, pipeline and orchestrator for a
// repo root. An invalid config is fatal. An unusable provider setting falls
// back to the mock provider and is returned alongside the services.
func BuildAppServices(root string, opts ...Option) (*AppServices, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.Load(root)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	s := &AppServices{Config: cfg}

	logger := o.logger
	if logger == nil {
		l, closeLog, err := logging.New(cfg.Log, root, os.Stderr)
		if err != nil {
			return nil, err
		}
		logger = l
		s.closers = append(s.closers, closeLog)
	}
	s.Logger = logger
	s.closers = append(s.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	var loadErr error
	if o.provider != nil {
		s.LLM = NewLLMService(o.provider, cfg, logger)
	} else {
		s.LLM, loadErr = LoadLLMService(cfg, logger)
		if loadErr != nil {
			logger.Warn("using mock LLM provider", zap.Error(loadErr))
		}
	}

	s.Workspace = NewWorkspace(root, cfg, logger)

	s.Registry = agent.NewRegistry()
	agents.RegisterDefaults(s.Registry, agents.Deps{
		LLM:      s.LLM,
		Changes:  s.Workspace.Changes,
		Feedback: s.Workspace.Feedback,
		Logger:   logger,
		Scan:     storage.DefaultScanLimits(),
	})
	if loader := LoadPlugins(root, cfg, s.Registry, logger); loader != nil {
		s.closers = append(s.closers, loader.Close)
	}

	s.Metrics = telemetry.NewMetrics()
	s.Events = events.NewEventDispatcher()
	s.Events.Register(events.NewLoggingHandler(logger).Registration())
	s.Events.Register(s.Metrics.Registration())
	if n := NewNotifier(root, cfg, logger); n != nil {
		s.Events.Register(n.Registration())
		s.closers = append(s.closers, n.Close)
	}

	pipelineOpts := []application.PipelineOption{
		application.WithStageDumper(s.Workspace.Repo),
		application.WithEventDispatcher(s.Events),
	}
	if o.tracerProvider != nil {
		pipelineOpts = append(pipelineOpts, application.WithTracerProvider(o.tracerProvider))
	}
	s.Pipeline = application.NewPipelineService(s.Registry, logger, pipelineOpts...)

	s.PlanState = application.NewPlanStateStore(s.Workspace.Repo, application.CodingClassifier(s.Registry), logger)
	s.Orchestrator = application.NewOrchestratorService(
		s.Registry, s.Pipeline, s.PlanState, s.Workspace.Feedback, s.Workspace.Lock,
		application.OrchestratorConfig{
			GeneratePlan:    cfg.Plan.Generate,
			ClearOnComplete: cfg.State.ClearOnComplete,
		},
		logger,
	)
	s.Registry.Register(application.OrchestratorID, s.Orchestrator)

	return s, loadErr
}

// NewContext builds the request context every entry point hands to the
// orchestrator or the pipeline.
func (s *AppServices) NewContext(request string, mode agent.Mode, edit bool) *agent.Context {
	return &agent.Context{
		WorkspaceRoot:  s.Workspace.Root,
		UserRequest:    request,
		ConversationID: uuid.NewString(),
		EditMode:       edit,
		Mode:           mode,
	}
}

// Close runs the closers in reverse order: pending webhook deliveries
// first, the logger last.
func (s *AppServices) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close services: %w", err)
	}
	return nil
}
