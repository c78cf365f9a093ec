package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/semmidev/filevault/internal/config"
	"github.com/semmidev/filevault/internal/domain"
	"github.com/semmidev/filevault/internal/infrastructure/events"
)

func (m Model) View() string {
	t := m.theme

	settings := lipgloss.JoinVertical(lipgloss.Left,
		t.Title.Render("FILEVAULT"),
		m.row("Source", orUnset(m.settings.SourceDir)),
		m.row("Destination", orUnset(m.settings.DestDir)),
		m.row("Auto backup", m.settings.Schedule),
		m.row("Max backups", config.FormatRetention(m.settings.MaxBackups)),
	)

	status := lipgloss.JoinVertical(lipgloss.Left,
		t.Title.Render("STATUS"),
		m.renderMessage(),
		m.bar.ViewAs(m.progress),
		t.Dim.Render(m.countdown),
		m.renderLast(),
	)

	parts := []string{
		t.Border.Render(settings),
		t.Border.Render(status),
	}
	if len(m.eventLog) > 0 {
		parts = append(parts, t.Border.Render(m.renderEvents()))
	}
	parts = append(parts, t.Dim.Render(" [r] Run backup • [s] Interval • [m] Max backups • [q] Quit"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) row(label, value string) string {
	return m.theme.Label.Render(label+":") + " " + value
}

func (m Model) renderMessage() string {
	t := m.theme
	switch {
	case m.message == "" && m.running:
		return t.StatusRunning.Render("Backing up...")
	case m.message == "":
		return t.StatusIdle.Render("Idle")
	case m.failed:
		return t.StatusFailed.Render(m.message)
	case m.running:
		return t.StatusRunning.Render(m.message)
	default:
		return t.StatusOK.Render(m.message)
	}
}

func (m Model) renderLast() string {
	t := m.theme
	s := m.status
	switch s.Outcome {
	case domain.OutcomeSuccess:
		return t.Dim.Render(fmt.Sprintf("Last: %s (%d files) at %s",
			filepath.Base(s.ArchivePath), s.Files, s.FinishedAt.Format("15:04:05")))
	case domain.OutcomeFailure:
		return t.StatusFailed.Render(fmt.Sprintf("Last: failed at %s: %s",
			s.FinishedAt.Format("15:04:05"), s.Message))
	default:
		return t.Dim.Render("Last: none")
	}
}

func (m Model) renderEvents() string {
	t := m.theme
	lines := []string{t.Title.Render("EVENTS")}
	for _, ev := range m.eventLog {
		lines = append(lines, fmt.Sprintf("%s %s",
			t.Dim.Render(ev.At.Format("15:04:05")),
			typeStyle(t, ev.Type).Render(ev.Type)))
	}
	return strings.Join(lines, "\n")
}

func typeStyle(t Theme, eventType string) lipgloss.Style {
	switch eventType {
	case events.BackupFinished:
		return t.StatusOK
	case events.BackupRejected:
		return t.StatusFailed
	case events.BackupStarted, events.BackupProgress:
		return t.StatusRunning
	case events.ScheduleChanged, events.ScheduleTriggered:
		return t.Highlight
	default:
		return t.Dim
	}
}

func orUnset(path string) string {
	if path == "" {
		return "(not set)"
	}
	return path
}

