package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	projectPath string
	metricsFile string
	eventsAddr  string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "crew",
	Version: Version,
	Short:   "A crew of LLM agents that plans, then builds, a project",
	Long: `Crew runs a pipeline of specialist LLM agents over a request.

The plan phase (analyst, architect, UX designer, product manager) writes
planning documents and saves its progress under .crew/. The code phase
(developer, code review, QA, technical writer) resumes from there, even in a
later process, and writes the project files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. An interrupt cancels the running stage;
// completed stages stay recorded.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectPath, "workspace", "w", "", "Workspace directory (default: current directory)")
	RootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics for the run to this file")
	RootCmd.PersistentFlags().StringVar(&eventsAddr, "events-addr", "", "Stream pipeline events as Server-Sent Events on this address")
}
