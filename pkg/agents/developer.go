package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/pkg/ai"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

// DeveloperID is the id of the code-writing agent.
const DeveloperID = "developer"

const developerSystem = "You are a senior software developer. You write complete, runnable code."

// DeveloperAgent asks the model for source files and writes every file it
// can recover from the answer.
type DeveloperAgent struct {
	deps      Deps
	extractor *Extractor
}

func NewDeveloperAgent(deps Deps) *DeveloperAgent {
	return &DeveloperAgent{deps: deps, extractor: DefaultExtractor()}
}

func (d *DeveloperAgent) ID() string { return DeveloperID }
func (d *DeveloperAgent) Description() string {
	return "Developer: implements the request as source files"
}
func (d *DeveloperAgent) Phase() agent.Phase { return agent.PhaseCode }

func (d *DeveloperAgent) ValidateInput(ac *agent.Context) error {
	if strings.TrimSpace(ac.UserRequest) == "" {
		return fmt.Errorf("%w: developer needs a user request", agent.ErrInvalidInput)
	}
	return nil
}

func (d *DeveloperAgent) Execute(ctx context.Context, ac *agent.Context) (string, error) {
	if d.deps.LLM == nil {
		return "", fmt.Errorf("developer: llm service: %w", agent.ErrMissingService)
	}
	log := d.deps.logger().With(zap.String("agent", DeveloperID))
	rec := feedback.NewRecorder(DeveloperID, d.deps.Feedback)
	defer d.deps.flush(ctx, rec, DeveloperID)

	existing, err := storage.ScanSourceFiles(ac.WorkspaceRoot, d.deps.Scan)
	if err != nil {
		log.Warn("workspace scan failed", zap.Error(err))
		rec.Issue(feedback.SeverityLow, "Could not scan existing files", err.Error())
	}
	edit := ac.EditMode || len(existing) > 0
	lang := DetectLanguage(ac.UserRequest)
	log.Debug("building prompt", zap.Bool("edit", edit), zap.Int("existing", len(existing)), zap.String("language", lang))

	text, err := d.deps.LLM.GenerateText(ctx, BuildDeveloperPrompt(ac, existing, edit, lang), ai.WithSystem(developerSystem))
	if err != nil {
		log.Warn("generation failed", zap.Error(err))
		rec.Issue(feedback.SeverityHigh, "LLM call failed", err.Error())
		rec.Remaining("Generate the implementation")
		return "", nil
	}

	files, strategy := d.extractor.ExtractWith(text)
	if len(files) == 0 {
		rec.Issue(feedback.SeverityMedium, "No files found in model output", "expected FILE: or EDIT: blocks")
		rec.Remaining("Re-run the developer stage to produce source files")
		return text, nil
	}
	log.Info("files extracted", zap.Int("count", len(files)), zap.String("strategy", strategy))

	w := d.deps.writer(ac)
	if w == nil {
		rec.Suggest("Set a workspace root to persist generated files")
		return text, nil
	}
	written := 0
	for _, f := range files {
		write := w.CreateFile
		if f.Edit {
			write = w.UpdateFile
		}
		if err := write(f.Name, f.Content); err != nil {
			log.Warn("file not written", zap.String("file", f.Name), zap.Error(err))
			rec.Issue(feedback.SeverityMedium, "Failed to write "+f.Name, err.Error())
			continue
		}
		d.deps.track(DeveloperID, f.Name, f.Content)
		rec.Completed("Wrote " + f.Name)
		written++
	}
	if written > 0 {
		rec.Next("Review the generated code")
	}
	return text, nil
}

// BuildDeveloperPrompt renders the create or edit prompt.
func BuildDeveloperPrompt(ac *agent.Context, existing []storage.SourceFile, edit bool, language string) string {
	var b strings.Builder
	if edit {
		b.WriteString("# Task: Modify an existing codebase\n\n")
		b.WriteString("Change the project below to satisfy the request. Output ONLY files that are new or changed, each in full.\n")
		b.WriteString("Mark changed files with EDIT: and new files with FILE:, each followed by one fenced code block:\n\n")
		b.WriteString("EDIT: path/to/existing.ext\n```lang\n<entire updated file>\n```\n\n")
		b.WriteString("FILE: path/to/new.ext\n```lang\n<entire new file>\n```\n")
	} else {
		b.WriteString("# Task: Build the project from scratch\n\n")
		b.WriteString("Implement the request as a complete, working project. Output every file needed to run it.\n")
		b.WriteString("Write each file as a FILE: line followed by one fenced code block:\n\n")
		b.WriteString("FILE: path/to/file.ext\n```lang\n<entire file>\n```\n")
	}
	if language != "" {
		fmt.Fprintf(&b, "\nUse %s exclusively for the implementation.\n", language)
	}

	b.WriteString("\n## User Request\n")
	b.WriteString(strings.TrimSpace(ac.UserRequest))
	b.WriteString("\n")
	writeHistory(&b, ac.ConversationHistory)

	if len(existing) > 0 {
		b.WriteString("\n## Existing Files\n")
		for _, f := range existing {
			fmt.Fprintf(&b, "\n### %s\n```\n%s\n```\n", f.Path, f.Content)
			if f.Truncated {
				b.WriteString("(truncated)\n")
			}
		}
	}
	writePreviousOutputs(&b, ac)
	return b.String()
}
