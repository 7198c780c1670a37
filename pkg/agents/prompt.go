package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

// maxPreviousOutput caps how much of each earlier stage is quoted.
const maxPreviousOutput = 12000

// BuildPrompt assembles the user prompt for a catalog agent.
func BuildPrompt(def Definition, ac *agent.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Role: %s\n\n", def.Description)
	b.WriteString(strings.TrimSpace(def.Instructions))
	b.WriteString("\n\n## User Request\n")
	b.WriteString(strings.TrimSpace(ac.UserRequest))
	b.WriteString("\n")
	writeHistory(&b, ac.ConversationHistory)
	writePreviousOutputs(&b, ac)
	return b.String()
}

func writeHistory(b *strings.Builder, history []agent.Message) {
	if len(history) == 0 {
		return
	}
	b.WriteString("\n## Conversation So Far\n")
	for _, m := range history {
		fmt.Fprintf(b, "- %s: %s\n", m.Role, m.Content)
	}
}

// writePreviousOutputs quotes earlier stages in execution order. Outputs
// not listed in CompletedStages follow in id order.
func writePreviousOutputs(b *strings.Builder, ac *agent.Context) {
	if len(ac.PreviousOutputs) == 0 {
		return
	}
	order := make([]string, 0, len(ac.PreviousOutputs))
	listed := make(map[string]bool, len(ac.CompletedStages))
	for _, id := range ac.CompletedStages {
		if _, ok := ac.PreviousOutputs[id]; ok && !listed[id] {
			order = append(order, id)
			listed[id] = true
		}
	}
	var rest []string
	for id := range ac.PreviousOutputs {
		if !listed[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	b.WriteString("\n## Outputs From Previous Stages\n")
	for _, id := range order {
		out := ac.PreviousOutputs[id]
		if len(out) > maxPreviousOutput {
			out = out[:maxPreviousOutput] + "\n...(truncated)"
		}
		fmt.Fprintf(b, "\n### %s\n%s\n", id, out)
	}
}
