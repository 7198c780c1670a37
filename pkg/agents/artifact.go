package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/ai"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
)

// ArtifactAgent runs a catalog definition: one LLM call whose answer is
// written to the definition's artifact file.
type ArtifactAgent struct {
	def  Definition
	deps Deps
}

func NewArtifactAgent(def Definition, deps Deps) *ArtifactAgent {
	return &ArtifactAgent{def: def, deps: deps}
}

func (a *ArtifactAgent) ID() string             { return a.def.ID }
func (a *ArtifactAgent) Description() string    { return a.def.Description }
func (a *ArtifactAgent) Phase() agent.Phase     { return a.def.Phase }
func (a *ArtifactAgent) Definition() Definition { return a.def }

// ValidateInput requires a user request.
func (a *ArtifactAgent) ValidateInput(ac *agent.Context) error {
	if strings.TrimSpace(ac.UserRequest) == "" {
		return fmt.Errorf("%w: %s needs a user request", agent.ErrInvalidInput, a.def.ID)
	}
	return nil
}

func (a *ArtifactAgent) Execute(ctx context.Context, ac *agent.Context) (string, error) {
	if a.deps.LLM == nil {
		return "", fmt.Errorf("%s: llm service: %w", a.def.ID, agent.ErrMissingService)
	}
	log := a.deps.logger().With(zap.String("agent", a.def.ID))
	rec := feedback.NewRecorder(a.def.ID, a.deps.Feedback)
	defer a.deps.flush(ctx, rec, a.def.ID)

	text, err := a.deps.LLM.GenerateText(ctx, BuildPrompt(a.def, ac), ai.WithSystem(a.def.System))
	if err != nil {
		log.Warn("generation failed", zap.Error(err))
		rec.Issue(feedback.SeverityHigh, "LLM call failed", err.Error())
		rec.Remaining("Generate " + a.def.Artifact)
		return "", nil
	}
	rec.Completed("Generated " + a.def.Artifact)

	w := a.deps.writer(ac)
	if w == nil {
		rec.Suggest("Set a workspace root to persist " + a.def.Artifact)
		return text, nil
	}
	if err := w.CreateFile(a.def.Artifact, text); err != nil {
		log.Warn("artifact not written", zap.String("file", a.def.Artifact), zap.Error(err))
		rec.Issue(feedback.SeverityMedium, "Failed to write "+a.def.Artifact, err.Error())
		return text, nil
	}
	a.deps.track(a.def.ID, a.def.Artifact, text)
	rec.Completed("Wrote " + a.def.Artifact)
	log.Info("artifact written", zap.String("file", a.def.Artifact), zap.Int("bytes", len(text)))
	return text, nil
}
