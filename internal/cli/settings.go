package cli

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/semmidev/filevault/internal/app"
	"github.com/semmidev/filevault/internal/config"
	"github.com/semmidev/filevault/internal/infrastructure/scheduler"
	"github.com/spf13/cobra"
)

var (
	settingsJSON bool

	setSource     string
	setDest       string
	setSchedule   string
	setMaxBackups string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the saved backup settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the saved settings",
	Long: `Change one or more saved settings. Unset flags keep their current value.

Schedules: None, 1 minute, 5 minutes, 15 minutes, 30 minutes, 1 hour, 3 hours,
6 hours, 12 hours, 1 day, or any "N minutes|hours|days" value.

Examples:
  filevault settings set --source ~/Documents --dest /mnt/backup
  filevault settings set --schedule "1 hour" --max-backups 10
  filevault settings set --max-backups disabled`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

func init() {
	settingsShowCmd.Flags().BoolVar(&settingsJSON, "json", false, "print the raw settings document")

	settingsSetCmd.Flags().StringVar(&setSource, "source", "", "source folder")
	settingsSetCmd.Flags().StringVar(&setDest, "dest", "", "destination folder")
	settingsSetCmd.Flags().StringVar(&setSchedule, "schedule", "", "auto backup interval")
	settingsSetCmd.Flags().StringVar(&setMaxBackups, "max-backups", "", `archives to keep, or "disabled"`)

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := config.NewSettingsStore(cfg.Backup.SettingsFile, noticeWarner{cmd.ErrOrStderr()}).Load()

	if settingsJSON {
		data, err := json.MarshalIndent(s, "", "    ")
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, titleStyle.Render("==> settings"))
	fmt.Fprintln(out, dimStyle.Render("  "+cfg.Backup.SettingsFile))
	printSettings(out, s)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	var interval string
	if flags.Changed("schedule") {
		d, err := scheduler.ParseInterval(setSchedule)
		if err != nil {
			return err
		}
		interval = scheduler.FormatInterval(d)
	}

	var retention *int
	if flags.Changed("max-backups") {
		if retention, err = config.ParseRetention(setMaxBackups); err != nil {
			return err
		}
	}

	application, err := app.New(cfg, app.WithConsole(io.Discard))
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	err = application.UpdateSettings(func(s *config.Settings) {
		if flags.Changed("source") {
			s.SourceDir = setSource
		}
		if flags.Changed("dest") {
			s.DestDir = setDest
		}
		if flags.Changed("schedule") {
			s.Schedule = interval
		}
		if flags.Changed("max-backups") {
			s.MaxBackups = retention
		}
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successStyle.Render("[ok] settings saved"))
	printSettings(out, application.Settings())
	return nil
}
