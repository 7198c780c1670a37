package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/pkg/plugin/contract"
)

var pluginJSON bool

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect agent plugins",
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the agent plugins configured for this workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return NewCLIError("failed to load configuration", "Fix .crew/config.yaml", err)
		}
		w := cmd.OutOrStdout()
		if pluginJSON {
			return writeJSON(w, cfg.Agents.Plugins)
		}
		if len(cfg.Agents.Plugins) == 0 {
			fmt.Fprintln(w, "No plugins configured.")
			return nil
		}
		for _, p := range cfg.Agents.Plugins {
			fmt.Fprintln(w, p)
		}
		return nil
	},
}

var pluginCheckCmd = &cobra.Command{
	Use:   "check <binary-path>",
	Short: "Start a plugin binary and run the agent contract against it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := contract.NewContractSuite().RunBinary(args[0])
		if err != nil {
			return NewCLIError("cannot start plugin", "Build the plugin with plugin.Serve and make it executable", err)
		}
		w := cmd.OutOrStdout()
		if pluginJSON {
			if err := writeJSON(w, result); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(w, "%s\n", stageStyle.Render(result.Agent))
			for _, r := range result.Results {
				mark := "ok  "
				msg := r.Message
				if !r.Passed {
					mark = "FAIL"
					msg = errStyle.Render(msg)
				}
				fmt.Fprintf(w, "  %s %s: %s\n", mark, r.Name, msg)
			}
			fmt.Fprintf(w, "%d passed, %d failed\n", result.Passed, result.Failed)
		}
		if !result.OK() {
			return NewCLIError(fmt.Sprintf("plugin %s failed %d checks", result.Agent, result.Failed), "", nil)
		}
		return nil
	},
}

func init() {
	pluginCmd.PersistentFlags().BoolVar(&pluginJSON, "json", false, "Output in JSON format")
	pluginCmd.AddCommand(pluginListCmd, pluginCheckCmd)
	RootCmd.AddCommand(pluginCmd)
}
