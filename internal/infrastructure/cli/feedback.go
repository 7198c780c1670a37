package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/crew/internal/infrastructure/watch"
	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/feedback"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

var (
	feedbackJSON  bool
	watchDebounce time.Duration
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Inspect what the agents reported about their runs",
}

var feedbackSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize every agent's latest feedback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			summary, err := s.Workspace.Feedback.GetFeedbackSummary()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), summary)
			return nil
		})
	},
}

var feedbackCriticalCmd = &cobra.Command{
	Use:   "critical",
	Short: "List high and critical issues across agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			issues, err := s.Workspace.Feedback.GetCriticalIssues()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if feedbackJSON {
				return writeJSON(w, issues)
			}
			if len(issues) == 0 {
				fmt.Fprintln(w, "No critical issues.")
				return nil
			}
			for _, is := range issues {
				fmt.Fprintf(w, "%s %s [%s] %s", is.Severity.Icon(), is.AgentName, is.Severity, is.Description)
				if is.Context != "" {
					fmt.Fprintf(w, " (%s)", is.Context)
				}
				fmt.Fprintln(w)
			}
			return nil
		})
	},
}

var feedbackLatestCmd = &cobra.Command{
	Use:   "latest <agent>",
	Short: "Show an agent's latest feedback record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			fb, err := s.Workspace.Feedback.GetLatestFeedback(args[0])
			if err != nil {
				return err
			}
			if fb == nil {
				return NewCLIError(fmt.Sprintf("no feedback recorded for %s", args[0]), "Run a pipeline that includes this agent first", nil)
			}
			if feedbackJSON {
				return writeJSON(cmd.OutOrStdout(), fb)
			}
			fmt.Fprint(cmd.OutOrStdout(), feedback.RenderSummary([]*feedback.AgentFeedback{fb}))
			return nil
		})
	},
}

var feedbackWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print agent feedback as it is recorded",
	Long: `Follow .crew/feedback and print a line for every new record, for example
while 'crew code' runs in another terminal. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			dir := filepath.Join(s.Workspace.Root, storage.CrewDir, storage.FeedbackDir)
			w := cmd.OutOrStdout()
			watcher, err := watch.NewFeedbackWatcher(dir, watchDebounce, func(batch []watch.ChangeEvent) {
				printFeedbackBatch(w, s.Workspace.Feedback, batch)
			}, s.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s\n", dir)
			err = watcher.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

// printFeedbackBatch prints one line per agent in the batch, from that
// agent's latest record.
func printFeedbackBatch(w io.Writer, svc *application.FeedbackService, batch []watch.ChangeEvent) {
	seen := map[string]bool{}
	for _, ev := range batch {
		if seen[ev.Agent] {
			continue
		}
		seen[ev.Agent] = true
		fb, err := svc.GetLatestFeedback(ev.Agent)
		if err != nil || fb == nil {
			continue
		}
		fmt.Fprintln(w, feedbackLine(fb))
	}
}

func feedbackLine(fb *feedback.AgentFeedback) string {
	line := fmt.Sprintf("%s %s: %d completed, %d issues",
		fb.Timestamp.Local().Format("15:04:05"), fb.AgentName, len(fb.CompletedTasks), len(fb.IssuesEncountered))
	if blocking := len(fb.BlockingIssues()); blocking > 0 {
		line += errStyle.Render(fmt.Sprintf(" (%d blocking)", blocking))
	}
	return line
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	feedbackCriticalCmd.Flags().BoolVar(&feedbackJSON, "json", false, "Output in JSON format")
	feedbackLatestCmd.Flags().BoolVar(&feedbackJSON, "json", false, "Output in JSON format")
	feedbackWatchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before printing a batch")
	feedbackCmd.AddCommand(feedbackSummaryCmd, feedbackCriticalCmd, feedbackLatestCmd, feedbackWatchCmd)
	RootCmd.AddCommand(feedbackCmd)
}
