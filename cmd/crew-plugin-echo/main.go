// Command crew-plugin-echo is a minimal crew agent plugin. It repeats the
// request and the stages that ran before it, which is handy for checking a
// plugin setup end to end.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/plugin"
)

type echoAgent struct{}

func (echoAgent) ID() string          { return "echo" }
func (echoAgent) Description() string { return "Echoes the request and the completed stages" }
func (echoAgent) Phase() agent.Phase  { return agent.PhasePlan }

func (echoAgent) Execute(_ context.Context, ac *agent.Context) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Echo\n\nRequest: %s\n", ac.UserRequest)
	if len(ac.CompletedStages) > 0 {
		fmt.Fprintf(&b, "After: %s\n", strings.Join(ac.CompletedStages, ", "))
	}
	return b.String(), nil
}

func main() {
	plugin.Serve(echoAgent{})
}
