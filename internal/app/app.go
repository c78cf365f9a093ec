package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/semmidev/filevault/internal/adapter/compressor"
	"github.com/semmidev/filevault/internal/adapter/notifier"
	"github.com/semmidev/filevault/internal/adapter/storage"
	"github.com/semmidev/filevault/internal/config"
	"github.com/semmidev/filevault/internal/domain"
	"github.com/semmidev/filevault/internal/infrastructure/auditlog"
	"github.com/semmidev/filevault/internal/infrastructure/events"
	"github.com/semmidev/filevault/internal/infrastructure/lock"
	"github.com/semmidev/filevault/internal/infrastructure/logger"
	"github.com/semmidev/filevault/internal/infrastructure/scheduler"
	"github.com/semmidev/filevault/internal/usecase"
)

var ErrPathsNotConfigured = errors.New("source and destination folders must be selected first")

type App struct {
	config    *config.Config
	logger    *logger.Logger
	settings  *config.SettingsStore
	hub       *events.Hub
	runner    *usecase.Runner
	scheduler *scheduler.Scheduler
	lock      *lock.PIDLock
	ownLogger bool

	mu      sync.RWMutex
	current config.Settings
}

type options struct {
	logger       *logger.Logger
	console      io.Writer
	instanceLock bool
	clock        func() time.Time
}

type Option func(*options)

// WithLogger injects a ready logger instead of building one from config.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConsole redirects console log output, io.Discard silences it.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithInstanceLock makes New fail when another process drives the same
// settings file.
func WithInstanceLock() Option {
	return func(o *options) { o.instanceLock = true }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	ownLogger := false
	if log == nil {
		var err error
		log, err = logger.NewWithOptions(logger.Options{
			Level:   cfg.App.LogLevel,
			File:    cfg.App.LogFile,
			Console: o.console,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		ownLogger = true
	}

	var pidLock *lock.PIDLock
	if o.instanceLock {
		var err error
		pidLock, err = lock.AcquirePIDLock(cfg.LockPath())
		if err != nil {
			return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
		}
	}

	log.Infof("Starting %s", cfg.App.Name)

	settings := config.NewSettingsStore(cfg.Backup.SettingsFile, log.Named("settings"))
	hub := events.NewHub(256)

	runner := usecase.NewRunner(
		compressor.NewZipLevel(cfg.Backup.CompressionLevel),
		func(dir string) (domain.Storage, error) { return storage.NewLocal(dir) },
		func(dir string) usecase.AuditLog { return auditlog.Open(dir) },
		storage.ArchiveName,
		log.Named("backup"),
		usecase.WithStagingDir(cfg.Backup.StagingDir),
		usecase.WithNotifiers(initializeNotifiers(cfg, log)...),
		usecase.WithPublisher(hub),
		usecase.WithClock(o.clock),
	)

	a := &App{
		config:    cfg,
		logger:    log,
		settings:  settings,
		hub:       hub,
		runner:    runner,
		lock:      pidLock,
		ownLogger: ownLogger,
	}

	a.scheduler = scheduler.New(
		a.trigger,
		log.Named("scheduler"),
		scheduler.WithTick(cfg.Backup.TickInterval),
		scheduler.WithPublisher(hub),
		scheduler.WithClock(o.clock),
	)

	a.current = settings.Load()
	a.restoreSchedule()

	return a, nil
}

func initializeNotifiers(cfg *config.Config, log *logger.Logger) []domain.Notifier {
	var notifiers []domain.Notifier

	if cfg.Notify.Telegram.Enabled {
		tg, err := notifier.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			notifiers = append(notifiers, tg)
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	return notifiers
}

func (a *App) restoreSchedule() {
	interval, err := scheduler.ParseInterval(a.current.Schedule)
	if err != nil {
		a.logger.Warnf("Ignoring saved schedule %q: %v", a.current.Schedule, err)
		a.current.Schedule = config.ScheduleNone
		return
	}
	if interval == 0 {
		return
	}
	if !a.current.PathsConfigured() {
		a.logger.Warnf("Saved schedule %s not armed: folders are not selected", a.current.Schedule)
		return
	}
	if err := a.scheduler.SetInterval(interval); err != nil {
		a.logger.Warnf("Ignoring saved schedule %q: %v", a.current.Schedule, err)
	}
}

// Start begins ticking the scheduler without blocking.
func (a *App) Start() error {
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.logger.Infof("Scheduler started successfully")
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	s := a.Settings()
	a.logger.Infof("Watching %s -> %s, schedule: %s, max backups: %s",
		s.SourceDir, s.DestDir, s.Schedule, config.FormatRetention(s.MaxBackups))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			remaining, armed := a.Countdown()
			a.logger.Debugf("%s", scheduler.FormatCountdown(remaining, armed))
		}
	}
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			a.logger.Warnf("Failed to release instance lock: %v", err)
		}
	}
	if a.ownLogger {
		a.logger.Close()
	}
}

func (a *App) trigger(ctx context.Context) {
	if _, err := a.RunNow(ctx); errors.Is(err, domain.ErrBackupBusy) {
		a.logger.Infof("Scheduled backup skipped, previous backup still running")
	}
}

func (a *App) job() domain.BackupJobConfig {
	s := a.Settings()
	return domain.BackupJobConfig{
		SourcePath:      s.SourceDir,
		DestinationPath: s.DestDir,
		RetentionLimit:  s.RetentionLimit(),
		Interval:        a.scheduler.State().Interval,
	}
}

// RunNow runs a backup with the current settings on the calling goroutine.
func (a *App) RunNow(ctx context.Context) (domain.Status, error) {
	return a.runner.Run(ctx, a.job())
}

// SetSchedule arms the scheduler with d, or disarms it when d is zero, and
// persists the choice.
func (a *App) SetSchedule(d time.Duration) error {
	a.mu.Lock()
	a.reloadLocked()
	configured := a.current.PathsConfigured()
	a.mu.Unlock()

	if d > 0 && !configured {
		a.logger.Warnf("Auto backup not enabled: %v", ErrPathsNotConfigured)
		return ErrPathsNotConfigured
	}
	if err := a.scheduler.SetInterval(d); err != nil {
		return err
	}

	a.mu.Lock()
	a.current.Schedule = scheduler.FormatInterval(d)
	s := a.current
	a.mu.Unlock()

	a.save(s)
	return nil
}

// UpdateSettings applies fn to the saved settings, re-arms the schedule when
// it or the folders changed, and persists the result. Edits saved by another
// process since the last change are kept.
func (a *App) UpdateSettings(fn func(*config.Settings)) error {
	a.mu.Lock()
	old := a.current
	a.reloadLocked()
	next := a.current
	if next.MaxBackups != nil {
		limit := *next.MaxBackups
		next.MaxBackups = &limit
	}
	fn(&next)

	interval, err := scheduler.ParseInterval(next.Schedule)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	next.Schedule = scheduler.FormatInterval(interval)
	if next.MaxBackups != nil && *next.MaxBackups < 0 {
		a.mu.Unlock()
		return fmt.Errorf("max backups must not be negative, got %d", *next.MaxBackups)
	}
	a.current = next
	a.mu.Unlock()

	if !next.PathsConfigured() {
		interval = 0
	}
	if next.Schedule != old.Schedule || next.PathsConfigured() != old.PathsConfigured() {
		if err := a.scheduler.SetInterval(interval); err != nil {
			return err
		}
	}

	a.save(next)
	return nil
}

// reloadLocked picks up settings saved by other processes. An unreadable file
// leaves the settings in memory untouched.
func (a *App) reloadLocked() {
	s, err := a.settings.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warnf("Keeping current settings, failed to reload %s: %v", a.settings.Path(), err)
		}
		return
	}
	a.current = s
}

func (a *App) save(s config.Settings) {
	if err := a.settings.Save(s); err != nil {
		a.logger.Warnf("Failed to save settings: %v", err)
	}
}

func (a *App) Settings() config.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.current
	if s.MaxBackups != nil {
		limit := *s.MaxBackups
		s.MaxBackups = &limit
	}
	return s
}

func (a *App) Countdown() (time.Duration, bool) {
	return a.scheduler.Countdown()
}

func (a *App) Schedule() domain.ScheduleState {
	return a.scheduler.State()
}

func (a *App) LastStatus() domain.Status {
	return a.runner.LastStatus()
}

func (a *App) Progress() float64 {
	return a.runner.Progress()
}

func (a *App) Busy() bool {
	return a.runner.Busy()
}

func (a *App) Events() *events.Hub {
	return a.hub
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}
