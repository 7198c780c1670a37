package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/crew/pkg/domain/events"
)

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func slackMessage(event events.DomainEvent) slackPayload {
	text := formatSlackText(event)
	return slackPayload{
		Text:   text,
		Blocks: []slackBlock{{Type: "section", Text: slackText{Type: "mrkdwn", Text: text}}},
	}
}

func formatSlackText(event events.DomainEvent) string {
	switch e := event.(type) {
	case *events.PipelineStarted:
		return fmt.Sprintf(":rocket: Crew run started: %s", strings.Join(e.Stages, " → "))
	case *events.PipelineCompleted:
		if e.Canceled {
			return fmt.Sprintf(":octagonal_sign: Crew run canceled after %d stages", e.Stages)
		}
		icon := ":white_check_mark:"
		if e.Failed > 0 {
			icon = ":warning:"
		}
		return fmt.Sprintf("%s Crew run finished: %d stages, %d failed in %s", icon, e.Stages, e.Failed, e.Duration.Round(time.Second))
	case *events.StageEvent:
		switch e.EventType() {
		case events.TypeStageStarted:
			return fmt.Sprintf(":arrow_forward: Stage *%s* started", e.Stage)
		case events.TypeStageCompleted:
			return fmt.Sprintf(":heavy_check_mark: Stage *%s* completed in %s", e.Stage, e.Duration.Round(time.Millisecond))
		case events.TypeStageFailed:
			return fmt.Sprintf(":x: Stage *%s* failed: %s", e.Stage, e.Err)
		case events.TypeStageMissing:
			return fmt.Sprintf(":grey_question: Stage *%s* has no registered agent", e.Stage)
		}
	}
	return fmt.Sprintf("Crew event: %s", event.EventType())
}
