package agent

import (
	"sort"
	"sync"
)

// Registry is a name to agent lookup table.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register stores the agent under id. A later registration replaces an earlier one.
func (r *Registry) Register(id string, a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[id] = a
}

// Get returns the agent registered under id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsCoding reports whether the agent registered under id belongs to the code
// phase. Unknown ids are treated as plan phase.
func (r *Registry) IsCoding(id string) bool {
	a, ok := r.Get(id)
	return ok && a.Phase() == PhaseCode
}
