package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/store"
)

var conversationsFlags struct {
	user   string
	output string
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Inspect the conversation store",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's conversations, most recently updated first",
	Long: `List a user's conversations from the store configured in the store section.

Examples:
  relay conversations list --user 3f1c6d2e-8a8b-4a57-9d0e-2b7f0f7a1c11
  relay conversations list --user 3f1c6d2e-... --output json`,
	RunE: listConversations,
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd)

	conversationsListCmd.Flags().StringVar(&conversationsFlags.user, "user", "", "user ID (UUID)")
	conversationsListCmd.Flags().StringVarP(&conversationsFlags.output, "output", "o", "text", "output format: text, json, csv")
	_ = conversationsListCmd.MarkFlagRequired("user")
}

func listConversations(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(conversationsFlags.user)
	if err != nil {
		return fmt.Errorf("invalid --user %q: must be a UUID", conversationsFlags.user)
	}

	format, err := cli.ParseFormat(conversationsFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return cli.NewCommandError("conversations list", err)
	}
	defer s.Close()

	list, err := s.ListConversations(cmd.Context(), userID)
	if err != nil {
		return cli.NewCommandError("conversations list", err)
	}

	table := cli.NewTable("ID", "Title", "Model", "Updated")
	for _, c := range list {
		table.AddRow(c.ID.String(), c.Title, strconv.Itoa(c.ModelID), c.UpdatedAt.Format(time.RFC3339))
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}
