package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

func TestCatalog_ArtifactsAndPhases(t *testing.T) {
	want := map[string]string{
		"analyst": "ANALYSIS.md", "architect": "ARCHITECTURE.md", "uxdesigner": "UX_DESIGN.md",
		"pm": "PRODUCT_PLAN.md", "qa": "QA_REPORT.md", "techwriter": "DOCUMENTATION.md",
		"quickflowdev": "QUICK_FLOW.md", "codereview": "CODE_REVIEW.md", "brainstorm": "BRAINSTORM.md",
		"model": "MODEL.md", "decide": "DECISION.md", "act": "ACTION_PLAN.md", "planning": "PLAN.md",
	}
	got := map[string]string{}
	for _, d := range Catalog() {
		got[d.ID] = d.Artifact
	}
	assert.Equal(t, want, got)

	for _, id := range []string{"codereview", "qa", "techwriter"} {
		d, ok := Lookup(id)
		require.True(t, ok)
		assert.Equal(t, agent.PhaseCode, d.Phase, id)
	}
	assert.NotContains(t, PlanPhaseIDs(), "qa")
	assert.Contains(t, PlanPhaseIDs(), "analyst")
}

func TestPlanningDefinition_ListsPlanAgents(t *testing.T) {
	d, ok := Lookup(PlanningID)
	require.True(t, ok)
	assert.Contains(t, d.Instructions, "analyst, architect, uxdesigner, pm")
	assert.Contains(t, d.Instructions, `"agentId"`)
}

func TestBuildPrompt_PreviousOutputsInOrder(t *testing.T) {
	d, _ := Lookup("qa")
	ac := &agent.Context{
		UserRequest:         "a todo app",
		ConversationHistory: []agent.Message{{Role: "user", Content: "make it dark"}},
		PreviousOutputs:     map[string]string{"architect": "ARCH", "analyst": "ANA"},
		CompletedStages:     []string{"analyst", "architect"},
	}

	p := BuildPrompt(d, ac)

	assert.Contains(t, p, "## User Request\na todo app")
	assert.Contains(t, p, "- user: make it dark")
	assert.Less(t, strings.Index(p, "### analyst"), strings.Index(p, "### architect"))
}

func TestArtifactAgent_WritesArtifactAndFeedback(t *testing.T) {
	llm := &stubLLM{reply: "# Analysis"}
	w := newMemWriter()
	tracker := &memTracker{}
	sink := &memSink{}
	def, _ := Lookup("analyst")
	a := NewArtifactAgent(def, Deps{LLM: llm, Files: w, Changes: tracker, Feedback: sink})

	out, err := a.Execute(context.Background(), &agent.Context{UserRequest: "todo app"})

	require.NoError(t, err)
	assert.Equal(t, "# Analysis", out)
	assert.Equal(t, "# Analysis", w.created["ANALYSIS.md"])
	assert.Equal(t, []string{"analyst"}, tracker.stages)
	require.Len(t, sink.records, 1)
	assert.Equal(t, "analyst", sink.records[0].AgentName)
	assert.Empty(t, sink.records[0].IssuesEncountered)
}

func TestArtifactAgent_LLMFailureBecomesIssue(t *testing.T) {
	sink := &memSink{}
	def, _ := Lookup("architect")
	a := NewArtifactAgent(def, Deps{LLM: &stubLLM{err: errors.New("rate limited")}, Files: newMemWriter(), Feedback: sink})

	out, err := a.Execute(context.Background(), &agent.Context{UserRequest: "x"})

	require.NoError(t, err)
	assert.Empty(t, out)
	require.Len(t, sink.records, 1)
	require.Len(t, sink.records[0].IssuesEncountered, 1)
	assert.Equal(t, feedback.SeverityHigh, sink.records[0].IssuesEncountered[0].Severity)
	assert.Equal(t, "rate limited", sink.records[0].IssuesEncountered[0].Context)
}

func TestArtifactAgent_WriteFailureKeepsOutput(t *testing.T) {
	sink := &memSink{}
	w := newMemWriter()
	w.failOn = "ARCHITECTURE.md"
	def, _ := Lookup("architect")
	a := NewArtifactAgent(def, Deps{LLM: &stubLLM{reply: "design"}, Files: w, Feedback: sink})

	out, err := a.Execute(context.Background(), &agent.Context{UserRequest: "x"})

	require.NoError(t, err)
	assert.Equal(t, "design", out)
	require.Len(t, sink.records[0].IssuesEncountered, 1)
	assert.Equal(t, feedback.SeverityMedium, sink.records[0].IssuesEncountered[0].Severity)
}

func TestArtifactAgent_MissingLLMIsError(t *testing.T) {
	def, _ := Lookup("pm")
	_, err := NewArtifactAgent(def, Deps{}).Execute(context.Background(), &agent.Context{UserRequest: "x"})
	assert.ErrorIs(t, err, agent.ErrMissingService)
}

func TestArtifactAgent_ValidateInput(t *testing.T) {
	def, _ := Lookup("pm")
	a := NewArtifactAgent(def, Deps{})
	assert.ErrorIs(t, a.ValidateInput(&agent.Context{UserRequest: "  "}), agent.ErrInvalidInput)
	assert.NoError(t, a.ValidateInput(&agent.Context{UserRequest: "ok"}))
}

func TestArtifactAgent_WritesUnderWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	def, _ := Lookup("analyst")
	a := NewArtifactAgent(def, Deps{LLM: &stubLLM{reply: "# A"}})

	_, err := a.Execute(context.Background(), &agent.Context{UserRequest: "x", WorkspaceRoot: root})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "ANALYSIS.md"))
	require.NoError(t, err)
	assert.Equal(t, "# A", string(data))
}

func TestDeveloperAgent_CreateMode(t *testing.T) {
	llm := &stubLLM{reply: "FILE: main.py\n```python\nprint('hi')\n```\n\nEDIT: README.md\n```\n# Readme\n```\n"}
	w := newMemWriter()
	sink := &memSink{}
	dev := NewDeveloperAgent(Deps{LLM: llm, Files: w, Feedback: sink})

	out, err := dev.Execute(context.Background(), &agent.Context{UserRequest: "hello world in Python"})

	require.NoError(t, err)
	assert.Equal(t, llm.reply, out)
	assert.Equal(t, "print('hi')", w.created["main.py"])
	assert.Equal(t, "# Readme", w.updated["README.md"])

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Build the project from scratch")
	assert.Contains(t, llm.prompts[0], "Use Python exclusively")
	require.Len(t, sink.records, 1)
	assert.Len(t, sink.records[0].CompletedTasks, 2)
}

func TestDeveloperAgent_EditModeFromExistingFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("console.log('old')"), 0o644))
	llm := &stubLLM{reply: "EDIT: app.js\n```js\nconsole.log('new')\n```\n"}
	dev := NewDeveloperAgent(Deps{LLM: llm})

	_, err := dev.Execute(context.Background(), &agent.Context{UserRequest: "change the log", WorkspaceRoot: root})
	require.NoError(t, err)

	assert.Contains(t, llm.prompts[0], "Modify an existing codebase")
	assert.Contains(t, llm.prompts[0], "### app.js\n```\nconsole.log('old')")
	data, err := os.ReadFile(filepath.Join(root, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('new')", string(data))
}

func TestDeveloperAgent_NoFilesIsIssue(t *testing.T) {
	sink := &memSink{}
	dev := NewDeveloperAgent(Deps{LLM: &stubLLM{reply: "I cannot help with that."}, Files: newMemWriter(), Feedback: sink})

	out, err := dev.Execute(context.Background(), &agent.Context{UserRequest: "x", EditMode: true})

	require.NoError(t, err)
	assert.Equal(t, "I cannot help with that.", out)
	require.Len(t, sink.records[0].IssuesEncountered, 1)
	assert.Equal(t, "No files found in model output", sink.records[0].IssuesEncountered[0].Description)
}

func TestDeveloperAgent_WriteFailureContinues(t *testing.T) {
	w := newMemWriter()
	w.failOn = "a.txt"
	sink := &memSink{}
	reply := FormatFiles([]File{{Name: "a.txt", Content: "a"}, {Name: "b.txt", Content: "b"}})
	dev := NewDeveloperAgent(Deps{LLM: &stubLLM{reply: reply}, Files: w, Feedback: sink})

	_, err := dev.Execute(context.Background(), &agent.Context{UserRequest: "x"})

	require.NoError(t, err)
	assert.Equal(t, "b", w.created["b.txt"])
	require.Len(t, sink.records[0].IssuesEncountered, 1)
	assert.Equal(t, "Failed to write a.txt", sink.records[0].IssuesEncountered[0].Description)
}

func TestBuildDeveloperPrompt_MarksTruncation(t *testing.T) {
	p := BuildDeveloperPrompt(&agent.Context{UserRequest: "x"},
		[]storage.SourceFile{{Path: "big.go", Content: "package big", Truncated: true}}, true, "")
	assert.Contains(t, p, "(truncated)")
	assert.NotContains(t, p, "exclusively")
}

func TestRegisterDefaults(t *testing.T) {
	reg := agent.NewRegistry()
	RegisterDefaults(reg, Deps{})

	for _, id := range []string{"analyst", "architect", "uxdesigner", "developer", "pm", "qa", "techwriter", "quickflowdev", "codereview", "planning"} {
		_, ok := reg.Get(id)
		assert.True(t, ok, id)
	}
	assert.True(t, reg.IsCoding("developer"))
	assert.True(t, reg.IsCoding("qa"))
	assert.False(t, reg.IsCoding("analyst"))
}
