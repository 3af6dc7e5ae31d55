// ABOUTME: CLI commands for reading and changing settings.
// ABOUTME: Supports get, set, list, and delete subcommands.
package main

import (
	"fmt"
	"strings"

	"github.com/harperreed/fitlog/internal/models"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"s"},
	Short:   "Manage settings",
	Long: `Read and change settings.

KNOWN SETTINGS:

  unit_system                       metric | imperial
  weight_unit                       kg | lb
  height_unit                       m | ft
  macro_unit                        g | oz
  rest_timer_seconds                non-negative integer
  bodyweight_exercises_use_metric   true | false
  theme                             free text
  openai_api_key                    secret (encrypted at rest)
  oauth_refresh_token               secret (encrypted at rest)
  passphrase_hint                   secret (encrypted at rest)`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <type>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting, err := repo.GetSetting(cmd.Context(), models.SettingType(args[0]))
		if err != nil {
			return fmt.Errorf("failed to get setting: %w", err)
		}
		if setting == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not set.\n", args[0])
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), setting.Value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <type> <value>",
	Short: "Create or update a setting",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := models.SettingType(args[0])
		setting, err := repo.AddOrUpdateSetting(cmd.Context(), t, strings.Join(args[1:], " "))
		if err != nil {
			if choices := models.SettingChoices(t); choices != nil {
				return fmt.Errorf("failed to set %s: %w (choices: %s)", t, err, strings.Join(choices, ", "))
			}
			return fmt.Errorf("failed to set %s: %w", t, err)
		}
		success.Fprintf(cmd.OutOrStdout(), "✓ Set %s\n", setting.Type)
		if !models.IsSensitiveSetting(setting.Type) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", setting.Value)
		}
		return nil
	},
}

var settingsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List settings (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := repo.ListSettings(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list settings: %w", err)
		}
		if len(settings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No settings found.")
			return nil
		}
		for _, s := range settings {
			value := s.Value
			if models.IsSensitiveSetting(s.Type) {
				value = "********"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", padRight(string(s.Type), 34), value)
		}
		return nil
	},
}

var settingsDeleteCmd = &cobra.Command{
	Use:     "delete <type>",
	Aliases: []string{"rm"},
	Short:   "Remove a setting",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repo.DeleteSetting(cmd.Context(), models.SettingType(args[0])); err != nil {
			return fmt.Errorf("failed to delete setting: %w", err)
		}
		warning.Fprintf(cmd.OutOrStdout(), "✗ Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsListCmd, settingsDeleteCmd)
	rootCmd.AddCommand(settingsCmd)
}
