package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go-video-parse/internal/api"
	"go-video-parse/internal/parser"
)

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugShowConfigCmd)
	debugCmd.AddCommand(debugPrintApiUrlCmd)
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging utilities (not for general use)",
	Long:  `Contains helper commands for debugging application behavior, like inspecting configuration or API URLs.`,
}

// --- debug show-config ---

var debugShowConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the fully loaded configuration object as JSON",
	Long: `Loads configuration via flags, environment and config file (respecting precedence)
and prints the final resulting configuration struct to stdout as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonBytes, err := json.MarshalIndent(globalConfig, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
		return nil
	},
}

// --- debug print-api-url ---

var debugPrintApiUrlCmd = &cobra.Command{
	Use:   "print-api-url [share text or URL...]",
	Short: "Print the parse request URL without sending it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := parser.New(nil, globalConfig.Endpoints, nil)
		target, endpoint, err := orch.Prepare(strings.Join(args, " "), globalConfig.Platform)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), api.RequestURL(endpoint, target))
		return nil
	},
}
