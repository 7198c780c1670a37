package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/pkg/ai"
)

var (
	initProvider string
	initModel    string
	initForce    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show .crew/config.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Example: `  crew config init --provider openai --model gpt-4o-mini
  crew config init --provider anthropic --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		path := config.Path(root)
		if _, err := os.Stat(path); err == nil && !initForce {
			return NewCLIError("config already exists", "Pass --force to overwrite "+path, nil)
		}

		cfg := config.Default()
		if initProvider != "" {
			cfg.LLM.Provider = initProvider
		}
		cfg.LLM.Model = initModel
		if err := config.Save(root, &cfg); err != nil {
			return NewCLIError("invalid settings", "Providers: "+strings.Join(ai.SupportedProviders(), ", "), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings (file, then CREW_* variables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return NewCLIError("invalid configuration", "Fix "+config.Path(root)+" or the CREW_* variables", err)
		}
		if cfg.LLM.APIKey != "" {
			cfg.LLM.APIKey = maskSecret(cfg.LLM.APIKey)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configInitCmd.Flags().StringVar(&initProvider, "provider", "", "LLM provider ("+strings.Join(ai.SupportedProviders(), ", ")+")")
	configInitCmd.Flags().StringVar(&initModel, "model", "", "Model name for the provider")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	RootCmd.AddCommand(configCmd)
}
