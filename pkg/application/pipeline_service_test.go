package application_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/felixgeelhaar/crew/pkg/agents"
	"github.com/felixgeelhaar/crew/pkg/ai"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/domain/events"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
	"github.com/felixgeelhaar/crew/pkg/domain/progress"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

func TestRunPipeline_EchoLLMDecisionStages(t *testing.T) {
	reg := agent.NewRegistry()
	llm := ai.NewService(&ai.MockProvider{}, ai.DefaultServiceConfig(), nil)
	agents.RegisterDefaults(reg, agents.Deps{LLM: llm})
	svc := application.NewPipelineService(reg, nil)

	stages := []string{"brainstorm", "model", "decide", "act"}
	out, err := svc.RunPipeline(context.Background(), &agent.Context{UserRequest: "pick a database"}, stages)

	require.NoError(t, err)
	require.Len(t, out, 4)
	for _, id := range stages {
		def, ok := agents.Lookup(id)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(out[id], "response for: "), id)
		assert.Contains(t, out[id], "# Role: "+def.Description, id)
	}
}

func TestRunPipeline_SequencingAndAccumulatedOutputs(t *testing.T) {
	log := newCallLog()
	reg := registryWith(log, []string{"a", "b", "c", "d"}, nil)
	svc := application.NewPipelineService(reg, nil)

	out, err := svc.RunPipeline(context.Background(), &agent.Context{}, []string{"c", "a", "d", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a", "d", "b"}, log.Order())
	assert.Empty(t, log.seen["c"])
	assert.Equal(t, map[string]string{"c": "c done"}, log.seen["a"])
	assert.Equal(t, map[string]string{"c": "c done", "a": "a done"}, log.seen["d"])
	assert.Equal(t, []string{"c", "a", "d"}, log.stage["b"])
	assert.Len(t, out, 4)
}

func TestRunPipeline_FailingStageDoesNotStopRun(t *testing.T) {
	log := newCallLog()
	reg := registryWith(log, []string{"first", "last"}, nil)
	reg.Register("broken", &scriptedAgent{id: "broken", reply: fail("boom"), log: log})
	svc := application.NewPipelineService(reg, nil)

	out, err := svc.RunPipeline(context.Background(), &agent.Context{}, []string{"first", "broken", "last"})

	require.NoError(t, err)
	assert.Equal(t, "Error: boom", out["broken"])
	assert.Equal(t, "last done", out["last"])
	assert.Equal(t, "Error: boom", log.seen["last"]["broken"])
}

func TestRunPipeline_MissingAgentPlaceholder(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := registryWith(nil, []string{"analyst"}, nil)
	svc := application.NewPipelineService(reg, zap.New(core))

	out, err := svc.RunPipeline(context.Background(), &agent.Context{}, []string{"ghost", "analyst"})

	require.NoError(t, err)
	assert.Equal(t, "Agent ghost missing", out["ghost"])
	assert.Equal(t, "analyst done", out["analyst"])
	assert.Equal(t, 1, logs.FilterMessage("agent not registered").Len())
}

func TestRunPipeline_InvalidStageID(t *testing.T) {
	svc := application.NewPipelineService(agent.NewRegistry(), nil)

	out, err := svc.RunPipeline(context.Background(), &agent.Context{}, []string{"../etc"})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out["../etc"], "Error: "))
}

func TestRunPipeline_DefaultOrder(t *testing.T) {
	log := newCallLog()
	reg := registryWith(log, planning.DefaultPipelineOrder, nil)
	svc := application.NewPipelineService(reg, nil)

	_, err := svc.RunPipeline(context.Background(), &agent.Context{}, nil)

	require.NoError(t, err)
	assert.Equal(t, planning.DefaultPipelineOrder, log.Order())
}

func TestRunPipeline_CancellationBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := newCallLog()
	reg := registryWith(log, []string{"second"}, nil)
	reg.Register("first", &scriptedAgent{id: "first", log: log, reply: func(*agent.Context) (string, error) {
		cancel()
		return "partial", nil
	}})
	svc := application.NewPipelineService(reg, nil)

	out, err := svc.RunPipeline(ctx, &agent.Context{}, []string{"first", "second"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, map[string]string{"first": "partial"}, out)
	assert.Equal(t, []string{"first"}, log.Order())
}

func TestRunPipeline_ProgressAndStageCallback(t *testing.T) {
	reg := registryWith(nil, []string{"a", "b"}, nil)
	reg.Register("bad", &scriptedAgent{id: "bad", reply: fail("nope")})
	svc := application.NewPipelineService(reg, nil)

	var snapshots []progress.State
	var done []string
	_, err := svc.RunPipeline(context.Background(), &agent.Context{}, []string{"a", "bad", "b"},
		application.WithProgressListener(func(s progress.State) { snapshots = append(snapshots, s) }),
		application.WithStageCallback(func(id, out string) { done = append(done, id) }),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bad", "b"}, done)
	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, progress.StatusCompleted, last.Status)
	assert.Equal(t, float64(100), last.Percentage)

	sawError := false
	for _, s := range snapshots {
		if s.Status == progress.StatusError {
			sawError = true
			assert.Equal(t, "nope", s.LastError)
		}
	}
	assert.True(t, sawError)
}

func TestRunPipeline_SeedOutputsVisibleToStages(t *testing.T) {
	log := newCallLog()
	reg := registryWith(log, nil, []string{"developer"})
	svc := application.NewPipelineService(reg, nil)

	out, err := svc.RunPipeline(context.Background(), &agent.Context{}, []string{"developer"},
		application.WithSeedOutputs(map[string]string{"analyst": "reqs"}, []string{"analyst"}))

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"analyst": "reqs"}, log.seen["developer"])
	assert.Equal(t, "reqs", out["analyst"])
}

type hookedAgent struct {
	scriptedAgent
	reject bool
}

func (h *hookedAgent) ValidateInput(ac *agent.Context) error {
	if h.reject {
		return agent.ErrInvalidInput
	}
	return nil
}

func (h *hookedAgent) PreProcess(ctx context.Context, ac *agent.Context) (*agent.Context, error) {
	next := *ac
	next.UserRequest = strings.ToUpper(ac.UserRequest)
	return &next, nil
}

func (h *hookedAgent) PostProcess(ctx context.Context, ac *agent.Context, output string) (string, error) {
	return output + " [checked]", nil
}

func TestRunPipeline_AgentHooks(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register("shout", &hookedAgent{scriptedAgent: scriptedAgent{id: "shout", reply: func(ac *agent.Context) (string, error) {
		return ac.UserRequest, nil
	}}})
	reg.Register("picky", &hookedAgent{reject: true, scriptedAgent: scriptedAgent{id: "picky"}})
	svc := application.NewPipelineService(reg, nil)

	out, err := svc.RunPipeline(context.Background(), &agent.Context{UserRequest: "hello"}, []string{"shout", "picky"})

	require.NoError(t, err)
	assert.Equal(t, "HELLO [checked]", out["shout"])
	assert.Equal(t, "Error: "+agent.ErrInvalidInput.Error(), out["picky"])
}

func TestRunPipeline_DebugDumpEventsAndSpans(t *testing.T) {
	root := t.TempDir()
	repo := storage.NewFilesystemRepository(root)
	dispatcher := events.NewEventDispatcher()
	var seen []string
	dispatcher.RegisterWildcard("collect", func(ctx context.Context, e events.DomainEvent) error {
		seen = append(seen, e.EventType())
		return nil
	})
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reg := registryWith(nil, []string{"analyst"}, nil)
	svc := application.NewPipelineService(reg, nil,
		application.WithStageDumper(repo),
		application.WithEventDispatcher(dispatcher),
		application.WithTracerProvider(tp),
	)

	_, err := svc.RunPipeline(context.Background(), &agent.Context{WorkspaceRoot: root}, []string{"analyst", "ghost"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, storage.DebugDir, "analyst.txt"))
	require.NoError(t, err)
	assert.Equal(t, "analyst done", string(data))

	assert.Equal(t, []string{
		events.TypePipelineStarted,
		events.TypeStageStarted,
		events.TypeStageCompleted,
		events.TypeStageMissing,
		events.TypePipelineCompleted,
	}, seen)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"pipeline.stage", "pipeline.run"}, names)
}
