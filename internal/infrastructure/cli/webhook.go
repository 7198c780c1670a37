package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/crew/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

var deadLettersJSON bool

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Inspect outgoing webhook deliveries",
}

var deadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List deliveries that failed every attempt",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		store := webhook.NewDeadLetterStore(filepath.Join(root, storage.CrewDir, wiring.DeadLetterFile))
		entries, err := store.ReadAll()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if deadLettersJSON {
			return writeJSON(w, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "No failed deliveries.")
			return nil
		}
		for _, dl := range entries {
			fmt.Fprintf(w, "%s %s %s (%d attempts): %s\n",
				dl.Timestamp.Local().Format("2006-01-02 15:04:05"), dl.WebhookName, dl.EventType, dl.Attempts, errStyle.Render(dl.Error))
		}
		return nil
	},
}

func init() {
	deadLettersCmd.Flags().BoolVar(&deadLettersJSON, "json", false, "Output in JSON format")
	webhookCmd.AddCommand(deadLettersCmd)
	RootCmd.AddCommand(webhookCmd)
}
