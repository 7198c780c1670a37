package agents

import "github.com/felixgeelhaar/crew/pkg/domain/agent"

// RegisterDefaults registers every catalog agent and the developer agent.
func RegisterDefaults(reg *agent.Registry, deps Deps) {
	for _, def := range Catalog() {
		reg.Register(def.ID, NewArtifactAgent(def, deps))
	}
	reg.Register(DeveloperID, NewDeveloperAgent(deps))
}
