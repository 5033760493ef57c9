package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
)

var providersFlags struct {
	output string
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show configured upstream providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider routes and their upstreams",
	RunE:  listProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd)

	providersListCmd.Flags().StringVarP(&providersFlags.output, "output", "o", "text", "output format: text, json, csv")
}

func listProviders(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(providersFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), providerTable(cfg))
}

func providerTable(cfg *config.Config) *cli.Table {
	table := cli.NewTable("Route", "Endpoint", "Model", "Timeout", "Parse_Failure")
	for _, name := range config.ProviderNames {
		pc, _ := cfg.Providers.ByName(name)
		table.AddRow("/"+name, pc.BaseURL, pc.Model, pc.Timeout.String(), pc.ParseFailure)
	}
	return table
}
