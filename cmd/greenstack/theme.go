package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenstack/greenstack/internal/dashboard"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show or change the saved dashboard theme",
}

var themeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the saved theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := cli.dashboard(nil, nil)
		if err != nil {
			return err
		}
		theme := d.GetThemeFromCookie()
		return cli.print(cmd.OutOrStdout(), map[string]string{"theme": theme}, theme)
	},
}

var themeSetCmd = &cobra.Command{
	Use:       "set <dark|light>",
	Short:     "Save a theme",
	ValidArgs: []string{dashboard.ThemeDark, dashboard.ThemeLight},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := cli.dashboard(nil, nil)
		if err != nil {
			return err
		}
		if err := d.SetTheme(args[0]); err != nil {
			return err
		}
		return cli.print(cmd.OutOrStdout(), map[string]string{"theme": args[0]}, args[0])
	},
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Switch between dark and light",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := cli.dashboard(nil, nil)
		if err != nil {
			return err
		}
		d.InitializeTheme()
		if err := d.ToggleTheme(); err != nil {
			return fmt.Errorf("toggling theme: %w", err)
		}
		theme := d.Page().Theme()
		return cli.print(cmd.OutOrStdout(), map[string]string{"theme": theme}, theme)
	},
}

func init() {
	themeCmd.AddCommand(themeGetCmd)
	themeCmd.AddCommand(themeSetCmd)
	themeCmd.AddCommand(themeToggleCmd)
}
