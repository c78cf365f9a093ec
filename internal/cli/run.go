package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/semmidev/filevault/internal/app"
	"github.com/semmidev/filevault/internal/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backup now",
	Long: `Run one backup with the saved settings and exit.

Examples:
  filevault run
  filevault run --settings ~/vault/backup_settings.json`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg, app.WithConsole(io.Discard))
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	out := cmd.OutOrStdout()
	s := application.Settings()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("==> backing up %s", s.SourceDir)))
	fmt.Fprintln(out, progressStyle.Render(fmt.Sprintf("  --> destination: %s", s.DestDir)))

	status, err := application.RunNow(cmd.Context())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPaths) {
			return fmt.Errorf("invalid folder paths, set them with 'filevault settings set': %w", err)
		}
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("  [ok] backup created: %s", filepath.Base(status.ArchivePath))))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("       %d file(s), %.2f MB", status.Files, float64(status.SizeBytes)/(1024*1024))))
	for _, name := range status.Deleted {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("       rotated: %s", name)))
	}
	return nil
}
