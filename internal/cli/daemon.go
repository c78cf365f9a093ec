package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/semmidev/filevault/internal/app"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled backups in the foreground",
	Long: `Run the scheduler with the saved interval until interrupted.

Only one daemon or watch session may drive a settings file at a time.

Examples:
  filevault daemon
  FILEVAULT_APP_LOG_LEVEL=debug filevault daemon`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg, app.WithInstanceLock())
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return application.Run(ctx)
}
