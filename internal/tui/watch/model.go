package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/semmidev/filevault/internal/config"
	"github.com/semmidev/filevault/internal/domain"
	"github.com/semmidev/filevault/internal/infrastructure/events"
	"github.com/semmidev/filevault/internal/infrastructure/scheduler"
)

// Backend is the engine surface the dashboard drives.
type Backend interface {
	RunNow(ctx context.Context) (domain.Status, error)
	SetSchedule(d time.Duration) error
	UpdateSettings(fn func(*config.Settings)) error
	Settings() config.Settings
	Countdown() (time.Duration, bool)
	LastStatus() domain.Status
	Progress() float64
	Busy() bool
}

type tickMsg time.Time

type eventMsg events.Event

type runDoneMsg struct {
	status domain.Status
	err    error
}

type Model struct {
	backend Backend
	events  <-chan events.Event
	ctx     context.Context

	width int

	settings  config.Settings
	countdown string
	status    domain.Status
	progress  float64
	running   bool
	message   string
	failed    bool
	eventLog  []events.Event

	bar   progress.Model
	theme Theme
}

// New builds the dashboard. sub delivers hub events and may be nil.
func New(ctx context.Context, backend Backend, sub <-chan events.Event) Model {
	m := Model{
		backend: backend,
		events:  sub,
		ctx:     ctx,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		theme:   NewDefaultTheme(),
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(),
		receiveNextEvent(m.events),
	)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m *Model) refresh() {
	m.settings = m.backend.Settings()
	m.countdown = scheduler.FormatCountdown(m.backend.Countdown())
	m.status = m.backend.LastStatus()
	m.running = m.backend.Busy()
	if m.running {
		m.progress = m.backend.Progress()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m.startRun()
		case "s":
			m.cycleSchedule()
		case "m":
			m.cycleRetention()
		}
		m.refresh()

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.refresh()
		return m, tick()

	case eventMsg:
		m.applyEvent(events.Event(msg))
		return m, receiveNextEvent(m.events)

	case runDoneMsg:
		m.refresh()
		m.running = false
		switch {
		case errors.Is(msg.err, domain.ErrBackupBusy):
			m.setMessage("Backup already running.", true)
		case msg.err != nil:
			m.setMessage(fmt.Sprintf("Backup failed: %v", msg.err), true)
			m.progress = 0
		default:
			m.setMessage(fmt.Sprintf("Backup completed successfully on %s.",
				msg.status.FinishedAt.Format("01-02-2006 at 15:04:05")), false)
			m.progress = 0
		}
	}

	return m, nil
}

func (m Model) startRun() (tea.Model, tea.Cmd) {
	if !m.settings.PathsConfigured() {
		m.setMessage("Select source and destination folders first.", true)
		return m, nil
	}
	if m.running {
		m.setMessage("Backup already running.", true)
		return m, nil
	}

	m.running = true
	m.progress = 0
	m.setMessage("Backing up...", false)

	backend, ctx := m.backend, m.ctx
	return m, func() tea.Msg {
		status, err := backend.RunNow(ctx)
		return runDoneMsg{status: status, err: err}
	}
}

func (m *Model) cycleSchedule() {
	next := scheduler.Presets[0]
	for i, label := range scheduler.Presets {
		if label == m.settings.Schedule {
			next = scheduler.Presets[(i+1)%len(scheduler.Presets)]
			break
		}
	}

	d, err := scheduler.ParseInterval(next)
	if err == nil {
		err = m.backend.SetSchedule(d)
	}
	if err != nil {
		m.setMessage(err.Error(), true)
		return
	}
	m.setMessage("Auto backup interval: "+next, false)
}

func (m *Model) cycleRetention() {
	next := config.NextRetention(m.settings.MaxBackups)
	if err := m.backend.UpdateSettings(func(s *config.Settings) { s.MaxBackups = next }); err != nil {
		m.setMessage(err.Error(), true)
		return
	}
	m.setMessage("Max backups: "+config.FormatRetention(next), false)
}

func (m *Model) applyEvent(ev events.Event) {
	m.eventLog = append([]events.Event{ev}, m.eventLog...)
	if len(m.eventLog) > 8 {
		m.eventLog = m.eventLog[:8]
	}

	switch ev.Type {
	case events.BackupStarted:
		m.running = true
		m.progress = 0
	case events.BackupProgress:
		var p struct {
			Progress float64 `json:"progress"`
		}
		if ev.Decode(&p) == nil && p.Progress > m.progress {
			m.progress = p.Progress
		}
	case events.BackupFinished:
		var status domain.Status
		if ev.Decode(&status) == nil {
			m.status = status
		}
	}
}

func (m *Model) setMessage(text string, failed bool) {
	m.message = text
	m.failed = failed
}
