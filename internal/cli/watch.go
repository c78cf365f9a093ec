package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/semmidev/filevault/internal/app"
	"github.com/semmidev/filevault/internal/tui/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the interactive dashboard",
	Long: `Open a terminal dashboard that runs the scheduler, shows the countdown and
progress, and lets you trigger a backup or change the interval.

Keys: r run backup, s next interval, m next max backups, q quit.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg, app.WithConsole(io.Discard), app.WithInstanceLock())
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	if err := application.Start(); err != nil {
		return err
	}

	sub, cancel := application.Events().Subscribe()
	defer cancel()

	model := watch.New(cmd.Context(), application, sub)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
