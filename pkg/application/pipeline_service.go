package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/domain"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/domain/events"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
	"github.com/felixgeelhaar/crew/pkg/domain/progress"
)

const tracerName = "github.com/felixgeelhaar/crew/pkg/application"

// PipelineService runs agents one after another, feeding every stage the
// outputs of all stages before it. A failing stage never stops the run.
type PipelineService struct {
	registry   *agent.Registry
	dumper     domain.StageDumper
	dispatcher *events.EventDispatcher
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// PipelineOption configures a PipelineService.
type PipelineOption func(*PipelineService)

// WithStageDumper keeps each stage's raw output for debugging.
func WithStageDumper(d domain.StageDumper) PipelineOption {
	return func(s *PipelineService) { s.dumper = d }
}

// WithEventDispatcher publishes run and stage events.
func WithEventDispatcher(d *events.EventDispatcher) PipelineOption {
	return func(s *PipelineService) { s.dispatcher = d }
}

// WithTracerProvider traces runs and stages with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) PipelineOption {
	return func(s *PipelineService) { s.tracer = tp.Tracer(tracerName) }
}

// NewPipelineService builds a runner over registry. A nil logger is replaced by a no-op one.
func NewPipelineService(registry *agent.Registry, logger *zap.Logger, opts ...PipelineOption) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PipelineService{
		registry: registry,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.Named("pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	seed      map[string]string
	seedOrder []string
	onStage   func(stageID, output string)
	listener  progress.Listener
}

// WithSeedOutputs pre-loads outputs of stages that ran earlier, in order.
func WithSeedOutputs(outputs map[string]string, order []string) RunOption {
	return func(c *runConfig) {
		c.seed = outputs
		c.seedOrder = order
	}
}

// WithStageCallback is called after every processed stage, including
// failed and missing ones, with the output recorded for it.
func WithStageCallback(fn func(stageID, output string)) RunOption {
	return func(c *runConfig) { c.onStage = fn }
}

// WithProgressListener receives a progress snapshot after every transition.
func WithProgressListener(l progress.Listener) RunOption {
	return func(c *runConfig) { c.listener = l }
}

// RunPipeline executes stageIDs in order, or the default order when empty,
// and returns every stage's output. Agent errors become "Error: <msg>"
// outputs and unknown ids become "Agent <id> missing". The only error
// returned is the context's, together with the outputs gathered so far.
func (s *PipelineService) RunPipeline(ctx context.Context, ac *agent.Context, stageIDs []string, opts ...RunOption) (map[string]string, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	stages := stageIDs
	if len(stages) == 0 {
		stages = append([]string(nil), planning.DefaultPipelineOrder...)
	}
	if ac == nil {
		ac = &agent.Context{}
	}

	tracker, err := progress.NewTracker(cfg.listener)
	if err != nil {
		return nil, fmt.Errorf("progress tracker: %w", err)
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))
	ctx, span := s.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("crew.run_id", runID),
		attribute.Int("crew.stage_count", len(stages)),
	))
	defer span.End()

	outputs := make(map[string]string, len(cfg.seed)+len(stages))
	for k, v := range cfg.seed {
		outputs[k] = v
	}
	order := append([]string(nil), cfg.seedOrder...)

	start := s.now()
	tracker.Start(len(stages))
	s.dispatch(ctx, &events.PipelineStarted{
		BaseEvent: events.BaseEvent{Type: events.TypePipelineStarted, Run: runID, Timestamp: start},
		Stages:    append([]string(nil), stages...),
	})
	log.Info("pipeline started", zap.Strings("stages", stages))

	failed := 0
	for i, id := range stages {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context canceled")
			s.finish(ctx, runID, start, i, failed, true)
			log.Warn("pipeline canceled", zap.Int("completed", i), zap.Error(err))
			return outputs, err
		}

		out, stageErr := s.runStage(ctx, runID, i, id, ac, outputs, order, tracker)
		if stageErr != nil {
			failed++
		}
		outputs[id] = out
		if !contains(order, id) {
			order = append(order, id)
		}
		if cfg.onStage != nil {
			cfg.onStage(id, out)
		}
	}

	tracker.Complete()
	s.finish(ctx, runID, start, len(stages), failed, false)
	log.Info("pipeline completed", zap.Int("stages", len(stages)), zap.Int("failed", failed))
	return outputs, nil
}

var errAgentMissing = errors.New("agent missing")

func (s *PipelineService) runStage(ctx context.Context, runID string, index int, id string, base *agent.Context,
	outputs map[string]string, order []string, tracker *progress.Tracker) (string, error) {
	log := s.logger.With(zap.String("run_id", runID), zap.String("stage", id))

	if _, err := domain.NewStageID(id); err != nil {
		log.Warn("invalid stage id", zap.Error(err))
		s.dispatchStage(ctx, events.TypeStageFailed, runID, id, index, func(e *events.StageEvent) { e.Err = err.Error() })
		return "Error: " + err.Error(), err
	}

	a, ok := s.registry.Get(id)
	if !ok {
		log.Warn("agent not registered")
		s.dispatchStage(ctx, events.TypeStageMissing, runID, id, index, nil)
		return fmt.Sprintf("Agent %s missing", id), errAgentMissing
	}

	tracker.StageStarted(index, id)
	s.dispatchStage(ctx, events.TypeStageStarted, runID, id, index, nil)

	ctx, span := s.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("crew.stage", id),
		attribute.Int("crew.stage_index", index),
	))
	defer span.End()

	started := s.now()
	out, err := invoke(ctx, a, base.WithStage(id, outputs, order))
	elapsed := s.now().Sub(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tracker.StageFailed(id, err)
		log.Error("stage failed", zap.Duration("duration", elapsed), zap.Error(err))
		s.dispatchStage(ctx, events.TypeStageFailed, runID, id, index, func(e *events.StageEvent) {
			e.Duration = elapsed
			e.Err = err.Error()
		})
		return "Error: " + err.Error(), err
	}

	tracker.StageCompleted(id)
	span.SetAttributes(attribute.Int("crew.output_bytes", len(out)))
	if s.dumper != nil {
		if err := s.dumper.DumpStage(id, out); err != nil {
			log.Warn("debug dump failed", zap.Error(err))
		}
	}
	log.Info("stage completed", zap.Duration("duration", elapsed), zap.Int("bytes", len(out)))
	s.dispatchStage(ctx, events.TypeStageCompleted, runID, id, index, func(e *events.StageEvent) {
		e.Duration = elapsed
		e.Bytes = len(out)
	})
	return out, nil
}

// invoke runs the agent with its optional hooks.
func invoke(ctx context.Context, a agent.Agent, ac *agent.Context) (string, error) {
	if v, ok := a.(agent.InputValidator); ok {
		if err := v.ValidateInput(ac); err != nil {
			return "", err
		}
	}
	if p, ok := a.(agent.PreProcessor); ok {
		next, err := p.PreProcess(ctx, ac)
		if err != nil {
			return "", fmt.Errorf("preprocess: %w", err)
		}
		if next != nil {
			ac = next
		}
	}
	out, err := a.Execute(ctx, ac)
	if err != nil {
		return "", err
	}
	if p, ok := a.(agent.PostProcessor); ok {
		out, err = p.PostProcess(ctx, ac, out)
		if err != nil {
			return "", fmt.Errorf("postprocess: %w", err)
		}
	}
	return out, nil
}

func (s *PipelineService) finish(ctx context.Context, runID string, start time.Time, stages, failed int, canceled bool) {
	now := s.now()
	s.dispatch(ctx, &events.PipelineCompleted{
		BaseEvent: events.BaseEvent{Type: events.TypePipelineCompleted, Run: runID, Timestamp: now},
		Stages:    stages,
		Failed:    failed,
		Duration:  now.Sub(start),
		Canceled:  canceled,
	})
}

func (s *PipelineService) dispatchStage(ctx context.Context, eventType, runID, stage string, index int, fill func(*events.StageEvent)) {
	if s.dispatcher == nil {
		return
	}
	e := events.NewStageEvent(eventType, runID, stage, index, s.now())
	if fill != nil {
		fill(e)
	}
	s.dispatch(ctx, e)
}

// dispatch publishes an event. Handler failures are logged and otherwise
// ignored; observers must not affect the run.
func (s *PipelineService) dispatch(ctx context.Context, e events.DomainEvent) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Debug("event handler failed", zap.String("event_type", e.EventType()), zap.Error(err))
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
