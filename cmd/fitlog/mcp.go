// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for assistant integration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/fitlog/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout. Secret settings are never returned.

CONFIGURATION:

  {
    "mcpServers": {
      "fitlog": {
        "command": "fitlog",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  get_setting          Read a setting (secrets masked)
  set_setting          Create or update a setting
  add_chat             Append a chat message
  list_chats           Page through chat history
  delete_chat          Delete a chat message
  add_workout          Log a workout with exercises and sets
  get_workout          Get a workout by ID or prefix
  list_workouts        Page through workouts
  workout_volume       Training volume for a workout
  add_user_metric      Record weight, height or body fat
  closest_user_metric  Latest measurement on or before a date

AVAILABLE RESOURCES:

  fitlog://workouts/recent   Workouts from the last 30 days
  fitlog://settings          Settings and display units`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(repo, appLogger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
