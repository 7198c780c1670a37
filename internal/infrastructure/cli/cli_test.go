package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/agents"
	infraai "github.com/felixgeelhaar/crew/pkg/ai"
	domainai "github.com/felixgeelhaar/crew/pkg/domain/ai"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
	runprogress "github.com/felixgeelhaar/crew/pkg/domain/progress"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

// resetFlags restores the package-level flag variables cobra binds to.
func resetFlags() {
	projectPath = ""
	metricsFile = ""
	eventsAddr = ""
	editMode = false
	quiet = false
	runStages = nil
	statusJSON = false
	feedbackJSON = false
	watchDebounce = 300 * time.Millisecond
	initProvider = ""
	initModel = ""
	initForce = false
	deadLettersJSON = false
	dashboardAddr = "127.0.0.1:7070"
	pluginJSON = false
}

func useMockServices(t *testing.T) {
	t.Helper()
	cfg := config.Default()
	cfg.Retry.DelayMS = 0
	serviceOptions = []wiring.Option{
		wiring.WithConfig(&cfg),
		wiring.WithLogger(zap.NewNop()),
		wiring.WithProvider(&infraai.MockProvider{Respond: func(domainai.CompletionRequest) string {
			return agents.FormatFiles([]agents.File{{Name: "main.go", Content: "package main"}})
		}}),
	}
	t.Cleanup(func() { serviceOptions = nil })
}

// runCLI executes the root command against args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestPlanStatusCodeReset(t *testing.T) {
	useMockServices(t)
	root := t.TempDir()

	out, stderr, err := runCLI(t, "-w", root, "plan", "A", "todo", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "# Plan Phase Summary")
	assert.Contains(t, stderr, "analyst")

	out, _, err = runCLI(t, "-w", root, "status", "--json")
	require.NoError(t, err)
	var st struct {
		Lifecycle   string   `json:"lifecycle"`
		UserRequest string   `json:"userRequest"`
		Pending     []string `json:"pendingSteps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, string(planning.PlanCompleteCodePending), st.Lifecycle)
	assert.Equal(t, "A todo app", st.UserRequest)
	require.NotEmpty(t, st.Pending)
	for _, id := range st.Pending {
		assert.True(t, planning.IsDefaultCodingStep(id), id)
	}

	out, _, err = runCLI(t, "-w", root, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Run 'crew code' to build.")
	assert.Contains(t, out, "(code)")

	out, _, err = runCLI(t, "-w", root, "code", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "# Code Phase Summary")
	assert.FileExists(t, filepath.Join(root, "main.go"))

	out, _, err = runCLI(t, "-w", root, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan state cleared")

	out, _, err = runCLI(t, "-w", root, "history")
	require.NoError(t, err)
	backup := strings.TrimSpace(strings.Split(out, "\n")[0])
	require.NotEmpty(t, backup)
	assert.NotEqual(t, "No backups yet.", backup)

	out, _, err = runCLI(t, "-w", root, "history", backup)
	require.NoError(t, err)
	assert.Contains(t, out, "Request:   A todo app")

	_, _, err = runCLI(t, "-w", root, "history", "missing.json")
	var cliErr *CLIError
	assert.True(t, errors.As(err, &cliErr))
}

func TestRunStagesPrintsMissingAgents(t *testing.T) {
	useMockServices(t)
	root := t.TempDir()

	out, _, err := runCLI(t, "-w", root, "run", "-q", "--stages", "analyst,ghost", "A", "URL", "shortener")
	require.NoError(t, err)
	assert.Contains(t, out, "## analyst")
	assert.Contains(t, out, "## ghost\n\nAgent ghost missing")
	assert.Less(t, strings.Index(out, "## analyst"), strings.Index(out, "## ghost"))

	_, err = os.Stat(filepath.Join(root, storage.CrewDir, storage.PlanStateDir, storage.PlanStateFile))
	assert.True(t, os.IsNotExist(err), "run must not write plan state")
}

func TestRunRecordsOrchestratorStageAsError(t *testing.T) {
	useMockServices(t)

	out, _, err := runCLI(t, "-w", t.TempDir(), "run", "-q", "--stages", "orchestrator", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "## orchestrator\n\nError: orchestrator cannot run as a pipeline stage")
}

func TestFeedbackCommands(t *testing.T) {
	useMockServices(t)
	root := t.TempDir()

	out, _, err := runCLI(t, "-w", root, "feedback", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "No feedback recorded yet.")

	_, _, err = runCLI(t, "-w", root, "run", "-q", "--stages", "analyst", "x")
	require.NoError(t, err)

	out, _, err = runCLI(t, "-w", root, "feedback", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "## analyst")

	out, _, err = runCLI(t, "-w", root, "feedback", "latest", "analyst", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"analyst"`)

	_, _, err = runCLI(t, "-w", root, "feedback", "latest", "qa")
	var cliErr *CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Contains(t, cliErr.Message, "no feedback recorded for qa")

	out, _, err = runCLI(t, "-w", root, "feedback", "critical")
	require.NoError(t, err)
	assert.Contains(t, out, "No critical issues.")
}

func TestMetricsFileWritten(t *testing.T) {
	useMockServices(t)
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "crew.prom")

	_, _, err := runCLI(t, "-w", root, "--metrics-file", path, "run", "-q", "--stages", "analyst", "x")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `crew_pipeline_stages_total{stage="analyst",status="completed"} 1`)
}

func TestWorkspaceFlagValidation(t *testing.T) {
	useMockServices(t)
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	_, _, err := runCLI(t, "-w", file, "status")
	assert.ErrorContains(t, err, "is not a directory")

	_, _, err = runCLI(t, "-w", filepath.Join(t.TempDir(), "nope"), "status")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	root := t.TempDir()

	out, _, err := runCLI(t, "-w", root, "config", "init", "--provider", "openai", "--model", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Contains(t, out, config.Path(root))

	_, _, err = runCLI(t, "-w", root, "config", "init")
	var cliErr *CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, "config already exists", cliErr.Message)

	_, _, err = runCLI(t, "-w", root, "config", "init", "--force", "--provider", "bogus")
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, "invalid settings", cliErr.Message)

	t.Setenv("CREW_LLM_API_KEY", "sk-secret-value")
	out, _, err = runCLI(t, "-w", root, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "provider: openai")
	assert.Contains(t, out, "model: gpt-4o-mini")
	assert.NotContains(t, out, "sk-secret-value")
	assert.Contains(t, out, "sk***********ue")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****", maskSecret("abcd"))
	assert.Equal(t, "ab*de", maskSecret("abcde"))
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)

	p.Listen(runprogress.State{Status: runprogress.StatusRunning, TotalStages: 2})
	p.Listen(runprogress.State{Status: runprogress.StatusRunning, TotalStages: 2})
	p.Listen(runprogress.State{Status: runprogress.StatusRunning, TotalStages: 2, CurrentStage: 1, CurrentAgent: "analyst"})
	p.Listen(runprogress.State{Status: runprogress.StatusError, TotalStages: 2, CurrentAgent: "qa", LastError: "boom", Percentage: 50})
	p.Listen(runprogress.State{Status: runprogress.StatusCompleted, TotalStages: 2, CompletedStages: 2, Percentage: 100})
	p.Listen(runprogress.State{Status: "idle"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "starting 2 stages")
	assert.Contains(t, lines[1], "[1/2]")
	assert.Contains(t, lines[1], "analyst")
	assert.Contains(t, lines[2], "qa failed: boom")
	assert.Contains(t, lines[3], "done (2/2 stages)")
}

func TestLifecycleHint(t *testing.T) {
	for _, l := range []planning.Lifecycle{planning.NoState, planning.PlanInProgress, planning.PlanCompleteCodePending, planning.AllComplete} {
		assert.NotEmpty(t, lifecycleHint(l), l)
	}
	assert.Empty(t, lifecycleHint("other"))
}

func TestWebhookDeadLetters(t *testing.T) {
	root := t.TempDir()

	out, _, err := runCLI(t, "-w", root, "webhook", "dead-letters")
	require.NoError(t, err)
	assert.Contains(t, out, "No failed deliveries.")

	store := webhook.NewDeadLetterStore(filepath.Join(root, storage.CrewDir, wiring.DeadLetterFile))
	require.NoError(t, store.Append(webhook.DeadLetter{
		Timestamp:   time.Now(),
		WebhookName: "team",
		EventType:   "stage.failed",
		Error:       "webhook returned status 500",
		Attempts:    3,
	}))

	out, _, err = runCLI(t, "-w", root, "webhook", "dead-letters")
	require.NoError(t, err)
	assert.Contains(t, out, "team stage.failed (3 attempts)")
	assert.Contains(t, out, "status 500")

	out, _, err = runCLI(t, "-w", root, "webhook", "dead-letters", "--json")
	require.NoError(t, err)
	var entries []webhook.DeadLetter
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
}

func TestEventsAddrStreamsDuringRun(t *testing.T) {
	useMockServices(t)

	_, stderr, err := runCLI(t, "-w", t.TempDir(), "--events-addr", "127.0.0.1:0", "run", "-q", "--stages", "analyst", "x")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Streaming events on http://127.0.0.1:")

	_, _, err = runCLI(t, "-w", t.TempDir(), "--events-addr", "256.0.0.1:bad", "status")
	var cliErr *CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, "cannot stream events", cliErr.Message)
}

func TestDashboardStopsOnCancel(t *testing.T) {
	useMockServices(t)
	resetFlags()
	t.Cleanup(resetFlags)

	var stderr bytes.Buffer
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs([]string{"-w", t.TempDir(), "dashboard", "--addr", "127.0.0.1:0"})
	t.Cleanup(func() {
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RootCmd.ExecuteContext(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("dashboard did not stop")
	}
	assert.Contains(t, stderr.String(), "Dashboard on http://127.0.0.1:0")
}

func TestPluginListAndCheck(t *testing.T) {
	root := t.TempDir()

	out, _, err := runCLI(t, "-w", root, "plugin", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No plugins configured.")

	require.NoError(t, os.MkdirAll(filepath.Join(root, storage.CrewDir), 0o700))
	require.NoError(t, os.WriteFile(config.Path(root), []byte("agents:\n  plugins: [bin/linter]\n"), 0o600))
	out, _, err = runCLI(t, "-w", root, "plugin", "list")
	require.NoError(t, err)
	assert.Equal(t, "bin/linter\n", out)

	_, _, err = runCLI(t, "plugin", "check", filepath.Join(root, "bin", "linter"))
	var cliErr *CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, "cannot start plugin", cliErr.Message)
}
