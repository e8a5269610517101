package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"go-video-parse/internal/notify"
	"go-video-parse/internal/prefs"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show or change the dark mode preference",
	Long: `The dark mode preference styles terminal output and generated HTML pages.
Until it is set explicitly it follows the terminal background.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(s *prefs.Store) error { return printTheme(cmd.OutOrStdout(), s) })
	},
}

var themeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(s *prefs.Store) error { return printTheme(cmd.OutOrStdout(), s) })
	},
}

var themeDarkCmd = &cobra.Command{
	Use:   "dark",
	Short: "Always use the dark theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTheme(true)
	},
}

var themeLightCmd = &cobra.Command{
	Use:   "light",
	Short: "Always use the light theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTheme(false)
	},
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Switch between dark and light",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(s *prefs.Store) error {
			dark, err := s.ToggleDarkMode()
			if err != nil {
				return err
			}
			notify.Info(newNotifier(dark), "已切换到"+themeName(dark))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
	themeCmd.AddCommand(themeShowCmd, themeDarkCmd, themeLightCmd, themeToggleCmd)
}

func withPrefs(fn func(s *prefs.Store) error) error {
	store, err := prefs.Open(globalConfig.PrefsPath)
	if err != nil {
		return fmt.Errorf("opening preferences: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func setTheme(dark bool) error {
	return withPrefs(func(s *prefs.Store) error {
		if err := s.SetDarkMode(dark); err != nil {
			return err
		}
		notify.Info(newNotifier(dark), "已切换到"+themeName(dark))
		return nil
	})
}

func printTheme(w io.Writer, s *prefs.Store) error {
	dark, set, err := s.DarkMode()
	if err != nil {
		return err
	}
	source := "stored preference"
	if !set {
		dark = s.EffectiveDarkMode()
		source = "terminal background"
	}
	_, err = fmt.Fprintf(w, "%s (%s)\n", themeName(dark), source)
	return err
}

func themeName(dark bool) string {
	if dark {
		return "深色模式"
	}
	return "浅色模式"
}
