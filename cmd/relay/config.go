package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
)

var configFlags struct {
	print bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the relay configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration with defaults and RELAY_* environment overrides
applied, and report every invalid field.

Examples:
  relay config validate --config config.yaml

  # Print the effective configuration after validation
  relay config validate --print`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)

	configValidateCmd.Flags().BoolVar(&configFlags.print, "print", false, "print the effective configuration as YAML")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Configuration valid")

	if configFlags.print {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		fmt.Fprint(out, string(data))
	}
	return nil
}
