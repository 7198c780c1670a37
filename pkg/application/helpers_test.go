package application_test

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

// scriptedAgent records what it saw and returns a canned answer.
type scriptedAgent struct {
	id    string
	phase agent.Phase
	reply func(ac *agent.Context) (string, error)

	log *callLog
}

type callLog struct {
	mu    sync.Mutex
	order []string
	seen  map[string]map[string]string
	stage map[string][]string
}

func newCallLog() *callLog {
	return &callLog{seen: map[string]map[string]string{}, stage: map[string][]string{}}
}

func (l *callLog) Order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

func (a *scriptedAgent) ID() string          { return a.id }
func (a *scriptedAgent) Description() string { return "scripted " + a.id }
func (a *scriptedAgent) Phase() agent.Phase  { return a.phase }

func (a *scriptedAgent) Execute(ctx context.Context, ac *agent.Context) (string, error) {
	if a.log != nil {
		a.log.mu.Lock()
		a.log.order = append(a.log.order, a.id)
		prev := make(map[string]string, len(ac.PreviousOutputs))
		for k, v := range ac.PreviousOutputs {
			prev[k] = v
		}
		a.log.seen[a.id] = prev
		a.log.stage[a.id] = append([]string(nil), ac.CompletedStages...)
		a.log.mu.Unlock()
	}
	if a.reply != nil {
		return a.reply(ac)
	}
	return a.id + " output", nil
}

func echo(ac *agent.Context) (string, error) { return ac.Stage + " done", nil }

func fail(msg string) func(*agent.Context) (string, error) {
	return func(*agent.Context) (string, error) { return "", errors.New(msg) }
}

// registryWith registers scripted agents for ids; coding ids get the code phase.
func registryWith(log *callLog, plan []string, code []string) *agent.Registry {
	reg := agent.NewRegistry()
	for _, id := range plan {
		reg.Register(id, &scriptedAgent{id: id, phase: agent.PhasePlan, reply: echo, log: log})
	}
	for _, id := range code {
		reg.Register(id, &scriptedAgent{id: id, phase: agent.PhaseCode, reply: echo, log: log})
	}
	return reg
}
