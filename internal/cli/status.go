package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/semmidev/filevault/internal/adapter/storage"
	"github.com/semmidev/filevault/internal/config"
	"github.com/semmidev/filevault/internal/infrastructure/auditlog"
	"github.com/spf13/cobra"
)

var statusLines int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show settings, archives and recent history",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLines, "lines", "n", 5, "number of audit log lines to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := config.NewSettingsStore(cfg.Backup.SettingsFile, noticeWarner{cmd.ErrOrStderr()}).Load()

	fmt.Fprintln(out, titleStyle.Render("==> filevault status"))
	printSettings(out, s)
	fmt.Fprintln(out)

	if s.DestDir == "" {
		fmt.Fprintln(out, warnStyle.Render("  destination folder not set"))
		return nil
	}

	dest, err := storage.NewLocal(s.DestDir)
	if err != nil {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("  destination unavailable: %v", err)))
		return nil
	}

	records, err := dest.ListArchives(cmd.Context())
	if err != nil {
		return fmt.Errorf("list archives: %w", err)
	}

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("==> archives (%d)", len(records))))
	for _, r := range records {
		fmt.Fprintf(out, "  %s  %s\n",
			valueStyle.Render(r.Filename),
			dimStyle.Render(fmt.Sprintf("%s  %.2f MB", r.CreatedAt.Format("2006-01-02 15:04:05"), float64(r.SizeBytes)/(1024*1024))))
	}

	lines, err := tail(filepath.Join(s.DestDir, auditlog.FileName), statusLines)
	if err != nil || len(lines) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("==> history"))
	for _, line := range lines {
		fmt.Fprintln(out, dimStyle.Render("  "+line))
	}
	return nil
}

func printSettings(out io.Writer, s config.Settings) {
	row := func(label, value string) {
		fmt.Fprintln(out, "  "+labelStyle.Render(label)+valueStyle.Render(value))
	}
	row("source", orUnset(s.SourceDir))
	row("destination", orUnset(s.DestDir))
	row("schedule", s.Schedule)
	row("max backups", config.FormatRetention(s.MaxBackups))
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

// tail returns the last n lines of path.
func tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

// noticeWarner prints settings problems as CLI notices on w.
type noticeWarner struct {
	w io.Writer
}

func (n noticeWarner) Warnf(template string, args ...interface{}) {
	fmt.Fprintln(n.w, warnStyle.Render("[warn] "+fmt.Sprintf(template, args...)))
}
