package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_HappyPath(t *testing.T) {
	var seen []State
	tr, err := NewTracker(func(s State) { seen = append(seen, s) })
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, tr.Snapshot().Status)

	tr.Start(4)
	tr.StageStarted(0, "analyst")
	tr.StageCompleted("analyst")

	snap := tr.Snapshot()
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 1, snap.CompletedStages)
	assert.Equal(t, 1, snap.CurrentStage)
	assert.InDelta(t, 25.0, snap.Percentage, 0.001)

	tr.Complete()
	snap = tr.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 100.0, snap.Percentage)
	assert.Len(t, seen, 4)
}

func TestTracker_ErrorThenRecover(t *testing.T) {
	tr, err := NewTracker(nil)
	require.NoError(t, err)

	tr.Start(2)
	tr.StageStarted(0, "analyst")
	tr.StageFailed("analyst", errors.New("boom"))
	assert.Equal(t, StatusError, tr.Snapshot().Status)
	assert.Equal(t, "boom", tr.Snapshot().LastError)

	tr.StageStarted(1, "architect")
	assert.Equal(t, StatusRunning, tr.Snapshot().Status)
	tr.StageCompleted("architect")
	assert.InDelta(t, 50.0, tr.Snapshot().Percentage, 0.001)
}

func TestTracker_CompleteFromError(t *testing.T) {
	tr, err := NewTracker(nil)
	require.NoError(t, err)

	tr.Start(1)
	tr.StageStarted(0, "qa")
	tr.StageFailed("qa", nil)
	tr.Complete()

	snap := tr.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 100.0, snap.Percentage)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(1, 0))
	assert.Equal(t, 100.0, percentage(5, 4))
	assert.InDelta(t, 33.333, percentage(1, 3), 0.01)
}
