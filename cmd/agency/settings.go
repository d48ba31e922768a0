package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agency/internal/config"
	"github.com/aristath/agency/internal/tui"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Edit execution and agent settings interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Edit the file-backed config; flag and environment overrides are not persisted
		cfg, err := config.Load(globalConfigPath, projectConfigPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		m := tui.NewSettingsModel(cfg, globalConfigPath, projectConfigPath)
		if _, err := tea.NewProgram(m, tea.WithContext(cmd.Context())).Run(); err != nil {
			return fmt.Errorf("running settings: %w", err)
		}

		path, saved, err := m.Result()
		switch {
		case err != nil:
			return fmt.Errorf("saving settings: %w", err)
		case saved:
			printStatus("✓", "Settings saved to "+path, color.FgGreen)
		default:
			printStatus("-", "No changes saved", color.FgYellow)
		}
		return nil
	},
}
