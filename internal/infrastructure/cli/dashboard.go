package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/infrastructure/dashboard"
)

var dashboardAddr string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve a web view of the plan and agent feedback",
	Long: `Serve a read-only page with the plan lifecycle, stage progress and each
agent's latest feedback. The page refreshes itself; JSON is available at
/api/status and /api/feedback.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			srv, err := dashboard.NewServer(dashboardAddr, s.Orchestrator, s.Workspace.Feedback, s.PlanState.IsCoding, s.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Dashboard on http://%s\n", dashboardAddr)
			err = srv.Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAddr, "addr", "127.0.0.1:7070", "Address to listen on")
	RootCmd.AddCommand(dashboardCmd)
}
