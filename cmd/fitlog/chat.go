// ABOUTME: CLI commands for the coach chat history.
// ABOUTME: Supports add, list, delete, and clear subcommands.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/fitlog/internal/models"
	"github.com/harperreed/fitlog/internal/views"
	"github.com/spf13/cobra"
)

var (
	chatPage int
	chatAll  bool
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"c"},
	Short:   "Manage chat history",
	Long: `Store and browse the coach chat history. Message content is encrypted at rest.

EXAMPLES:

  fitlog chat add user "How heavy should I squat today?"
  fitlog chat list                # newest page
  fitlog chat list --page 1       # next page
  fitlog chat list --all          # everything, newest first
  fitlog chat delete 42`,
}

var chatAddCmd = &cobra.Command{
	Use:   "add <role> <content>",
	Short: "Append a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := models.NewChatMessage(models.ChatRole(args[0]), strings.Join(args[1:], " "))
		if err := repo.AddChat(cmd.Context(), msg); err != nil {
			return fmt.Errorf("failed to add chat: %w", err)
		}
		success.Fprintf(cmd.OutOrStdout(), "✓ Added %s message\n", msg.Role)
		fmt.Fprintf(cmd.OutOrStdout(), "  ID: %d\n", msg.ID)
		return nil
	},
}

var chatListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List messages newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var msgs []*models.ChatMessage
		if chatAll {
			history := views.NewChatHistory(repo, repo.Bus(), cfg.GetPageSize(), appLogger)
			defer history.Close()
			if err := history.Load(ctx); err != nil {
				return fmt.Errorf("failed to list chats: %w", err)
			}
			for history.HasMore() {
				if err := history.LoadMore(ctx); err != nil {
					return fmt.Errorf("failed to list chats: %w", err)
				}
			}
			msgs = history.Items()
		} else {
			var err error
			msgs, err = repo.GetChatsPaginated(ctx, chatPage, cfg.GetPageSize())
			if err != nil {
				return fmt.Errorf("failed to list chats: %w", err)
			}
		}

		if len(msgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No chat messages found.")
			return nil
		}
		for _, m := range msgs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
				faint.Sprint(padRight(strconv.FormatInt(m.ID, 10), 6)),
				faint.Sprint(m.CreatedAt.Format("2006-01-02 15:04")),
				padRight(string(m.Role), 10),
				truncate(m.Content, 80))
		}
		return nil
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a message permanently",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat ID: %s", args[0])
		}
		if err := repo.DeleteChatByID(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete chat: %w", err)
		}
		warning.Fprintf(cmd.OutOrStdout(), "✗ Deleted message %d\n", id)
		return nil
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every message",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := repo.ClearChats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear chats: %w", err)
		}
		warning.Fprintf(cmd.OutOrStdout(), "✗ Deleted %d messages\n", n)
		return nil
	},
}

func init() {
	chatListCmd.Flags().IntVarP(&chatPage, "page", "p", 0, "zero-based page number")
	chatListCmd.Flags().BoolVar(&chatAll, "all", false, "list every message")
	chatCmd.AddCommand(chatAddCmd, chatListCmd, chatDeleteCmd, chatClearCmd)
	rootCmd.AddCommand(chatCmd)
}
