// Package events defines the events a pipeline run emits and a dispatcher
// that fans them out to observers (metrics, logs, progress displays).
package events

import (
	"time"
)

// Event types.
const (
	TypePipelineStarted   = "pipeline.started"
	TypePipelineCompleted = "pipeline.completed"
	TypeStageStarted      = "stage.started"
	TypeStageCompleted    = "stage.completed"
	TypeStageFailed       = "stage.failed"
	TypeStageMissing      = "stage.missing"
)

// AllTypes lists every event type a pipeline run emits.
func AllTypes() []string {
	return []string{
		TypePipelineStarted,
		TypePipelineCompleted,
		TypeStageStarted,
		TypeStageCompleted,
		TypeStageFailed,
		TypeStageMissing,
	}
}

// DomainEvent is the base interface for all events.
type DomainEvent interface {
	EventType() string
	RunID() string
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type      string    `json:"type"`
	Run       string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) RunID() string         { return e.Run }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// PipelineStarted is emitted once the stage list is resolved.
type PipelineStarted struct {
	BaseEvent
	Stages []string `json:"stages"`
}

// PipelineCompleted is emitted after the last stage, or on cancellation.
type PipelineCompleted struct {
	BaseEvent
	Stages   int           `json:"stages"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Canceled bool          `json:"canceled,omitempty"`
}

// StageEvent covers started/completed/failed/missing stages.
type StageEvent struct {
	BaseEvent
	Stage    string        `json:"stage"`
	Index    int           `json:"index"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      string        `json:"error,omitempty"`
	Bytes    int           `json:"bytes,omitempty"`
}

// NewStageEvent builds a stage event of the given type.
func NewStageEvent(eventType, runID, stage string, index int, at time.Time) *StageEvent {
	return &StageEvent{
		BaseEvent: BaseEvent{Type: eventType, Run: runID, Timestamp: at},
		Stage:     stage,
		Index:     index,
	}
}
