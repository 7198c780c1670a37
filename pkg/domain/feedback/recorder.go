package feedback

import (
	"context"
	"sync"
)

// Sink persists a finished record. The application feedback service
// implements it.
type Sink interface {
	CreateFeedback(ctx context.Context, fb *AgentFeedback) (*AgentFeedback, error)
}

// Recorder accumulates one agent invocation's feedback and writes it once.
// A Recorder with a nil sink collects but never persists.
type Recorder struct {
	mu      sync.Mutex
	agent   string
	sink    Sink
	record  AgentFeedback
	flushed bool
}

// NewRecorder starts a record for agentName.
func NewRecorder(agentName string, sink Sink) *Recorder {
	return &Recorder{agent: agentName, sink: sink, record: AgentFeedback{AgentName: agentName}}
}

func (r *Recorder) Completed(task string) {
	r.mu.Lock()
	r.record.CompletedTasks = append(r.record.CompletedTasks, task)
	r.mu.Unlock()
}

func (r *Recorder) Remaining(work string) {
	r.mu.Lock()
	r.record.RemainingWork = append(r.record.RemainingWork, work)
	r.mu.Unlock()
}

// Issue records a problem. Expected failures end up here instead of as errors.
func (r *Recorder) Issue(sev Severity, description, context string) {
	r.mu.Lock()
	r.record.IssuesEncountered = append(r.record.IssuesEncountered, Issue{Severity: sev, Description: description, Context: context})
	r.mu.Unlock()
}

func (r *Recorder) Suggest(s string) {
	r.mu.Lock()
	r.record.Suggestions = append(r.record.Suggestions, s)
	r.mu.Unlock()
}

func (r *Recorder) Next(step string) {
	r.mu.Lock()
	r.record.NextSteps = append(r.record.NextSteps, step)
	r.mu.Unlock()
}

// Issues returns a copy of the issues recorded so far.
func (r *Recorder) Issues() []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Issue(nil), r.record.IssuesEncountered...)
}

// Flush persists the record. Subsequent calls are no-ops.
func (r *Recorder) Flush(ctx context.Context) (*AgentFeedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flushed || r.sink == nil {
		return nil, nil
	}
	r.flushed = true
	rec := r.record
	return r.sink.CreateFeedback(ctx, &rec)
}
