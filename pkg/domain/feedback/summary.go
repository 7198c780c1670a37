package feedback

import (
	"fmt"
	"strings"
	"time"
)

// RenderSummary renders the given records, one section each, in order.
// Output depends only on the records.
func RenderSummary(records []*AgentFeedback) string {
	var b strings.Builder
	b.WriteString("# Agent Feedback Summary\n")
	if len(records) == 0 {
		b.WriteString("\nNo feedback recorded yet.\n")
		return b.String()
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", rec.AgentName)
		fmt.Fprintf(&b, "_%s_\n", rec.Timestamp.UTC().Format(time.RFC3339))

		writeList(&b, "Completed", rec.CompletedTasks, "- ✅ ")
		writeList(&b, "Remaining Work", rec.RemainingWork, "- [ ] ")

		if len(rec.IssuesEncountered) > 0 {
			b.WriteString("\n### Issues\n")
			for _, issue := range rec.IssuesEncountered {
				fmt.Fprintf(&b, "- %s **%s**: %s", issue.Severity.Icon(), issue.Severity, issue.Description)
				if issue.Context != "" {
					fmt.Fprintf(&b, " (%s)", issue.Context)
				}
				b.WriteString("\n")
			}
		}

		writeList(&b, "Suggestions", rec.Suggestions, "- ")
		writeList(&b, "Next Steps", rec.NextSteps, "- ")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string, prefix string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n", title)
	for _, item := range items {
		b.WriteString(prefix)
		b.WriteString(item)
		b.WriteString("\n")
	}
}
