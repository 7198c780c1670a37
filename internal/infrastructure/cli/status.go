package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/planning"
)

var statusJSON bool

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	PaddingLeft(1).
	PaddingRight(1)

var mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the plan lifecycle and which stages are done",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			st := s.Orchestrator.Status()
			if statusJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			renderStatus(cmd.OutOrStdout(), st, s.PlanState.IsCoding)
			return nil
		})
	},
}

func lifecycleHint(l planning.Lifecycle) string {
	switch l {
	case planning.NoState:
		return "Nothing planned yet. Run 'crew plan <request>'."
	case planning.PlanInProgress:
		return "Planning was interrupted. Run 'crew plan' again or 'crew reset'."
	case planning.PlanCompleteCodePending:
		return "Planning done. Run 'crew code' to build."
	case planning.AllComplete:
		return "All stages complete."
	default:
		return ""
	}
}

func renderStatus(w io.Writer, st application.Status, isCoding planning.CodingClassifier) {
	fmt.Fprintln(w, headerStyle.Render("crew "+st.Lifecycle.String()))
	if st.UserRequest != "" {
		fmt.Fprintf(w, "Request: %s\n", st.UserRequest)
	}
	if st.PlanID != "" {
		fmt.Fprintln(w, mutedStyle.Render("Plan "+st.PlanID))
	}

	if len(st.Completed) > 0 {
		fmt.Fprintf(w, "\nCompleted (%d):\n", len(st.Completed))
		for _, id := range st.Completed {
			fmt.Fprintf(w, "  %s %s\n", doneStyle.Render("✓"), id)
		}
	}
	if len(st.Pending) > 0 {
		fmt.Fprintf(w, "\nPending (%d):\n", len(st.Pending))
		for _, id := range st.Pending {
			phase := "plan"
			if isCoding(id) {
				phase = "code"
			}
			fmt.Fprintf(w, "  • %s %s\n", id, mutedStyle.Render("("+phase+")"))
		}
	}
	if hint := lifecycleHint(st.Lifecycle); hint != "" {
		fmt.Fprintf(w, "\n%s\n", hint)
	}
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Back up and delete the plan state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			if err := s.Orchestrator.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Plan state cleared. Earlier states are listed by 'crew history'.")
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [backup]",
	Short: "List plan state backups, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				state, err := s.PlanState.LoadBackup(args[0])
				if err != nil {
					return NewCLIError("backup not readable", "Run 'crew history' to list backups", err)
				}
				fmt.Fprintf(w, "Request:   %s\n", state.UserRequest)
				fmt.Fprintf(w, "Updated:   %s\n", state.UpdatedAt.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(w, "Completed: %s\n", strings.Join(state.CompletedSteps, ", "))
				fmt.Fprintf(w, "Pending:   %s\n", strings.Join(state.PendingSteps, ", "))
				return nil
			}
			names, err := s.PlanState.History()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(w, "No backups yet.")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(w, n)
			}
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	RootCmd.AddCommand(statusCmd, resetCmd, historyCmd)
}
