// Package progress tracks a single pipeline run. State is process-local
// and never persisted.
package progress

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// Status values double as statekit state ids.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

const (
	eventStart  = "start"
	eventFail   = "fail"
	eventStage  = "stage"
	eventFinish = "finish"
)

// State is a snapshot of run progress.
type State struct {
	Status          Status  `json:"status"`
	TotalStages     int     `json:"totalStages"`
	CompletedStages int     `json:"completedStages"`
	CurrentStage    int     `json:"currentStage"`
	CurrentAgent    string  `json:"currentAgent,omitempty"`
	Percentage      float64 `json:"percentage"`
	LastError       string  `json:"lastError,omitempty"`
}

// Listener receives a snapshot after every transition.
type Listener func(State)

type runContext struct{}

// Tracker drives the status machine for one run.
type Tracker struct {
	mu       sync.Mutex
	interp   *statekit.Interpreter[runContext]
	state    State
	listener Listener
}

// NewTracker builds an idle tracker. listener may be nil.
func NewTracker(listener Listener) (*Tracker, error) {
	builder := statekit.NewMachine[runContext]("pipeline-progress").
		WithInitial(statekit.StateID(StatusIdle)).
		WithContext(runContext{})

	builder.State(statekit.StateID(StatusIdle)).
		On(eventStart).Target(statekit.StateID(StatusRunning)).
		Done()

	builder.State(statekit.StateID(StatusRunning)).
		On(eventFail).Target(statekit.StateID(StatusError)).
		On(eventFinish).Target(statekit.StateID(StatusCompleted)).
		Done()

	builder.State(statekit.StateID(StatusError)).
		On(eventStage).Target(statekit.StateID(StatusRunning)).
		On(eventFinish).Target(statekit.StateID(StatusCompleted)).
		Done()

	builder.State(statekit.StateID(StatusCompleted)).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build progress machine: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()

	return &Tracker{
		interp:   interp,
		state:    State{Status: StatusIdle},
		listener: listener,
	}, nil
}

// Start begins a run over total stages.
func (t *Tracker) Start(total int) {
	t.update(eventStart, func(s *State) {
		s.TotalStages = total
		s.CompletedStages = 0
		s.CurrentStage = 0
		s.CurrentAgent = ""
		s.Percentage = 0
	})
}

// StageStarted marks stage index (zero based) as in progress.
func (t *Tracker) StageStarted(index int, agentID string) {
	t.update(eventStage, func(s *State) {
		s.CurrentStage = index + 1
		s.CurrentAgent = agentID
	})
}

// StageCompleted counts the current stage as done.
func (t *Tracker) StageCompleted(agentID string) {
	t.update("", func(s *State) {
		s.CompletedStages++
		s.CurrentAgent = agentID
		s.Percentage = percentage(s.CompletedStages, s.TotalStages)
	})
}

// StageFailed records a failed stage. The run goes on.
func (t *Tracker) StageFailed(agentID string, err error) {
	t.update(eventFail, func(s *State) {
		s.CurrentAgent = agentID
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

// Complete finishes the run and pins the percentage at 100.
func (t *Tracker) Complete() {
	t.update(eventFinish, func(s *State) {
		s.CurrentAgent = ""
		s.Percentage = 100
	})
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) update(event string, mutate func(*State)) {
	t.mu.Lock()
	if event != "" {
		t.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	}
	mutate(&t.state)
	t.state.Status = Status(t.interp.State().Value)
	snap := t.state
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		listener(snap)
	}
}

func percentage(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}
