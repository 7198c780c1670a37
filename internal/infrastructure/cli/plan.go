package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	runprogress "github.com/felixgeelhaar/crew/pkg/domain/progress"
)

var (
	editMode  bool
	quiet     bool
	runStages []string
)

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Run the planning agents and save the plan state",
	Long: `Run the planning agents for a request. Each agent writes its document
into the workspace; the coding stages are left pending for 'crew code'.`,
	Example: `  crew plan "A CLI that converts CSV to JSON"
  crew plan --edit "Add pagination to the list endpoint"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			s.Orchestrator.SetProgressListener(progressListener(cmd))
			ac := s.NewContext(strings.Join(args, " "), agent.ModePlan, editMode)
			out, err := s.Orchestrator.ExecutePlan(cmd.Context(), ac)
			fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		})
	},
}

var codeCmd = &cobra.Command{
	Use:   "code [request]",
	Short: "Resume the pending coding stages",
	Long: `Run the coding stages left pending by 'crew plan', with the planning
documents as context. Without pending work a fresh coding run starts, for the
given request or the last planned one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			s.Orchestrator.SetProgressListener(progressListener(cmd))
			ac := s.NewContext(strings.Join(args, " "), agent.ModeCode, editMode)
			out, err := s.Orchestrator.ExecuteCode(cmd.Context(), ac)
			fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run agents as one pipeline without saving plan state",
	Example: `  crew run --stages analyst,architect "A URL shortener"
  crew run "A URL shortener"   # every default stage`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			ac := s.NewContext(strings.Join(args, " "), agent.ModePlan, editMode)
			listener := progressListener(cmd)
			var order []string
			outputs, err := s.Pipeline.RunPipeline(cmd.Context(), ac, runStages,
				runOptions(listener, func(id, _ string) { order = append(order, id) })...)
			w := cmd.OutOrStdout()
			for _, id := range order {
				fmt.Fprintf(w, "## %s\n\n%s\n\n", id, strings.TrimSpace(outputs[id]))
			}
			return err
		})
	},
}

func runOptions(listener runprogress.Listener, onStage func(id, output string)) []application.RunOption {
	opts := []application.RunOption{application.WithStageCallback(onStage)}
	if listener != nil {
		opts = append(opts, application.WithProgressListener(listener))
	}
	return opts
}

func init() {
	for _, c := range []*cobra.Command{planCmd, codeCmd, runCmd} {
		c.Flags().BoolVar(&editMode, "edit", false, "Modify the existing code base instead of starting fresh")
		c.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
		RootCmd.AddCommand(c)
	}
	runCmd.Flags().StringSliceVar(&runStages, "stages", nil, "Comma-separated agent ids, in order")
}
