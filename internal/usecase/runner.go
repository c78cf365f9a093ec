package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/semmidev/filevault/internal/domain"
	"github.com/semmidev/filevault/internal/infrastructure/auditlog"
	"github.com/semmidev/filevault/internal/infrastructure/events"
)

// progressStep is how many files pass between two published progress events.
const progressStep = 10

type StorageOpener func(dir string) (domain.Storage, error)

type AuditOpener func(dir string) AuditLog

// Namer returns the final archive filename for a run started at t.
type Namer func(t time.Time) string

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// Runner executes one backup at a time:
// validate, archive, relocate, rotate, then record the result.
type Runner struct {
	archiver    domain.Archiver
	openStorage StorageOpener
	openAudit   AuditOpener
	name        Namer
	rotation    *Rotation
	logger      Logger
	events      Publisher
	notifiers   []domain.Notifier
	stagingDir  string
	now         func() time.Time

	guard    sync.Mutex
	running  atomic.Bool
	progress progress

	mu     sync.RWMutex
	status domain.Status
}

type RunnerOption func(*Runner)

// WithStagingDir makes archives be written in dir before relocation. By
// default they are staged in the destination directory.
func WithStagingDir(dir string) RunnerOption {
	return func(r *Runner) { r.stagingDir = dir }
}

func WithNotifiers(n ...domain.Notifier) RunnerOption {
	return func(r *Runner) { r.notifiers = append(r.notifiers, n...) }
}

func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) {
		if p != nil {
			r.events = p
		}
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(
	archiver domain.Archiver,
	openStorage StorageOpener,
	openAudit AuditOpener,
	name Namer,
	logger Logger,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		archiver:    archiver,
		openStorage: openStorage,
		openAudit:   openAudit,
		name:        name,
		rotation:    NewRotation(logger),
		logger:      logger,
		events:      nopPublisher{},
		now:         time.Now,
		status:      domain.Status{State: domain.StateIdle, Outcome: domain.OutcomeNone},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one backup of job. It returns domain.ErrBackupBusy at once,
// without touching the destination, when another run is active.
func (r *Runner) Run(ctx context.Context, job domain.BackupJobConfig) (domain.Status, error) {
	if !r.guard.TryLock() {
		r.logger.Debugf("Backup request ignored, a backup is already running")
		r.events.Publish(events.BackupRejected, map[string]string{"reason": domain.ErrBackupBusy.Error()})
		return r.LastStatus(), domain.ErrBackupBusy
	}
	defer r.guard.Unlock()
	r.running.Store(true)
	defer r.running.Store(false)

	r.progress.Reset()
	status := domain.Status{
		State:     domain.StateValidating,
		Outcome:   domain.OutcomeNone,
		StartedAt: r.now(),
	}
	r.setStatus(status)
	r.events.Publish(events.BackupStarted, map[string]string{
		"source":      job.SourcePath,
		"destination": job.DestinationPath,
	})
	r.logger.Infof("Starting backup of %s into %s", job.SourcePath, job.DestinationPath)

	storage, err := r.validate(job)
	if err != nil {
		return r.finish(ctx, status, nil, err)
	}
	audit := r.openAudit(job.DestinationPath)

	status.State = domain.StateArchiving
	r.setStatus(status)

	stagingDir := r.stagingDir
	if stagingDir == "" {
		stagingDir = job.DestinationPath
	}

	staged, err := r.archiver.Build(ctx, job.SourcePath, stagingDir, r.onProgress)
	if err != nil {
		return r.finish(ctx, status, audit, fmt.Errorf("%w: %w", domain.ErrArchiveFailed, err))
	}
	status.Files = staged.Files
	status.SizeBytes = staged.SizeBytes
	r.logger.Infof("Archived %d file(s), size: %.2f MB", staged.Files, float64(staged.SizeBytes)/(1024*1024))

	status.State = domain.StateRelocating
	r.setStatus(status)

	filename := r.name(status.StartedAt)
	finalPath, err := storage.Place(ctx, staged.Path, filename)
	if err != nil {
		os.Remove(staged.Path)
		return r.finish(ctx, status, audit, fmt.Errorf("%w: %w", domain.ErrRelocateFailed, err))
	}
	status.ArchivePath = finalPath
	r.advance(1)

	status.State = domain.StateRotating
	r.setStatus(status)

	report := r.rotation.Apply(ctx, storage, audit, job.RetentionLimit)
	status.Deleted = report.Deleted

	return r.finish(ctx, status, audit, nil)
}

func (r *Runner) validate(job domain.BackupJobConfig) (domain.Storage, error) {
	if err := requireDir(job.SourcePath); err != nil {
		return nil, fmt.Errorf("%w: source: %w", domain.ErrInvalidPaths, err)
	}
	if err := requireDir(job.DestinationPath); err != nil {
		return nil, fmt.Errorf("%w: destination: %w", domain.ErrInvalidPaths, err)
	}

	storage, err := r.openStorage(job.DestinationPath)
	if err != nil {
		return nil, fmt.Errorf("%w: destination: %w", domain.ErrInvalidPaths, err)
	}
	return storage, nil
}

func requireDir(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// finish records the outcome. A nil audit means the result is not written to
// the destination history, which is the case for invalid paths.
func (r *Runner) finish(ctx context.Context, status domain.Status, audit AuditLog, runErr error) (domain.Status, error) {
	status.State = domain.StateLoggingResult
	r.setStatus(status)

	if runErr == nil {
		status.Outcome = domain.OutcomeSuccess
		status.Message = fmt.Sprintf("Backup completed: %s", filepath.Base(status.ArchivePath))
		r.logger.Infof("Backup completed: %s", status.ArchivePath)
		r.audit(audit, auditlog.LevelSuccess, fmt.Sprintf("%s -> %s", filepath.Base(status.ArchivePath), status.ArchivePath))
	} else {
		status.Outcome = domain.OutcomeFailure
		status.Message = runErr.Error()
		r.logger.Errorf("Backup failed: %v", runErr)
		r.audit(audit, auditlog.LevelError, runErr.Error())
	}

	status.State = domain.StateIdle
	status.FinishedAt = r.now()
	status.Progress = r.progress.Load()
	if runErr != nil {
		status.Progress = 0
		r.progress.Reset()
	}
	r.setStatus(status)
	r.events.Publish(events.BackupFinished, status)

	for _, n := range r.notifiers {
		if err := n.Notify(ctx, status); err != nil {
			r.logger.Warnf("Notification failed: %v", err)
		}
	}

	return status, runErr
}

func (r *Runner) audit(audit AuditLog, level, message string) {
	if audit == nil {
		return
	}
	if err := audit.Append(level, message); err != nil {
		r.logger.Errorf("Failed to write audit log: %v", err)
	}
}

func (r *Runner) onProgress(done, total int) {
	if total <= 0 {
		return
	}
	r.progress.Advance(float64(done) / float64(total))
	if done%progressStep == 0 || done == total {
		r.events.Publish(events.BackupProgress, map[string]any{
			"done":     done,
			"total":    total,
			"progress": r.progress.Load(),
		})
	}
}

func (r *Runner) advance(f float64) {
	if r.progress.Advance(f) {
		r.events.Publish(events.BackupProgress, map[string]any{"progress": r.progress.Load()})
	}
}

func (r *Runner) setStatus(status domain.Status) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

// Progress returns the completed fraction of the active run, or of the last
// run once it has finished.
func (r *Runner) Progress() float64 {
	return r.progress.Load()
}

// LastStatus returns the current run status, or the final status of the
// previous run when idle.
func (r *Runner) LastStatus() domain.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status := r.status
	status.Progress = r.progress.Load()
	return status
}

func (r *Runner) Busy() bool {
	return r.running.Load()
}
