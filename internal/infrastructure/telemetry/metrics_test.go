package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/crew/pkg/domain/events"
)

func stageEvent(eventType, stage string, d time.Duration, bytes int) *events.StageEvent {
	e := events.NewStageEvent(eventType, "run-1", stage, 0, time.Now())
	e.Duration = d
	e.Bytes = bytes
	return e
}

func TestMetrics_StageOutcomes(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, stageEvent(events.TypeStageCompleted, "analyst", 2*time.Second, 120)))
	require.NoError(t, m.Handle(ctx, stageEvent(events.TypeStageCompleted, "analyst", time.Second, 80)))
	require.NoError(t, m.Handle(ctx, stageEvent(events.TypeStageFailed, "qa", 0, 0)))
	require.NoError(t, m.Handle(ctx, stageEvent(events.TypeStageMissing, "ghost", 0, 0)))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StagesTotal.WithLabelValues("analyst", StatusCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StagesTotal.WithLabelValues("qa", StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StagesTotal.WithLabelValues("ghost", StatusMissing)))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.StageOutputBytes.WithLabelValues("analyst")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDurationSeconds))
}

func TestMetrics_IgnoresStartedEvents(t *testing.T) {
	m := NewMetrics()
	require.NoError(t, m.Handle(context.Background(), stageEvent(events.TypeStageStarted, "pm", 0, 0)))
	assert.Equal(t, 0, testutil.CollectAndCount(m.StagesTotal))
}

func TestMetrics_Runs(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, &events.PipelineCompleted{
		BaseEvent: events.BaseEvent{Type: events.TypePipelineCompleted, Run: "a"},
		Duration:  3 * time.Second,
	}))
	require.NoError(t, m.Handle(ctx, &events.PipelineCompleted{
		BaseEvent: events.BaseEvent{Type: events.TypePipelineCompleted, Run: "b"},
		Canceled:  true,
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("finished")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("canceled")))
}

func TestMetrics_ThroughDispatcher(t *testing.T) {
	m := NewMetrics()
	d := events.NewEventDispatcher()
	d.Register(m.Registration())

	require.NoError(t, d.Dispatch(context.Background(), stageEvent(events.TypeStageCompleted, "pm", time.Second, 10)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StagesTotal.WithLabelValues("pm", StatusCompleted)))
	assert.True(t, d.HasHandlers(events.TypePipelineCompleted))
	assert.False(t, d.HasHandlers(events.TypePipelineStarted))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	require.NoError(t, m.Handle(context.Background(), stageEvent(events.TypeStageCompleted, "architect", time.Second, 5)))

	path := filepath.Join(t.TempDir(), "crew.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `crew_pipeline_stages_total{stage="architect",status="completed"} 1`)
}

func TestMetrics_WriteTextfileBadDir(t *testing.T) {
	m := NewMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "crew.prom"))
	assert.Error(t, err)
}
