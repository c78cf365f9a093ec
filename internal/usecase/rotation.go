package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/filevault/internal/domain"
	"github.com/semmidev/filevault/internal/infrastructure/auditlog"
)

// Rotation prunes the oldest archives so at most limit remain.
type Rotation struct {
	logger Logger
}

func NewRotation(logger Logger) *Rotation {
	return &Rotation{logger: logger}
}

// Apply deletes the oldest archives beyond limit. A limit <= 0 disables
// rotation. Deletion failures are reported, never returned.
func (r *Rotation) Apply(ctx context.Context, storage domain.Storage, audit AuditLog, limit int) domain.RotationReport {
	var report domain.RotationReport

	if limit <= 0 {
		return report
	}

	records, err := storage.ListArchives(ctx)
	if err != nil {
		r.logger.Warnf("Rotation skipped, cannot list archives: %v", err)
		r.audit(audit, auditlog.LevelWarning, fmt.Sprintf("Rotation skipped: %v", err))
		return report
	}

	excess := len(records) - limit
	if excess <= 0 {
		return report
	}

	r.logger.Infof("Rotating %d old backup(s), keeping %d", excess, limit)

	for _, rec := range records[:excess] {
		if err := storage.Delete(ctx, rec.Filename); err != nil {
			err = fmt.Errorf("%w: %s: %w", domain.ErrRotationDeleteFailed, rec.Filename, err)
			r.logger.Warnf("Failed to delete old backup %s: %v", rec.Filename, err)
			r.audit(audit, auditlog.LevelWarning, fmt.Sprintf("Failed to delete old backup %s: %v", rec.Filename, err))
			report.Failed = append(report.Failed, domain.RotationFailure{Filename: rec.Filename, Err: err})
			continue
		}

		r.logger.Infof("Deleted old backup: %s", rec.Filename)
		r.audit(audit, auditlog.LevelRotated, fmt.Sprintf("Deleted old backup %s", rec.Filename))
		report.Deleted = append(report.Deleted, rec.Filename)
	}

	return report
}

func (r *Rotation) audit(audit AuditLog, level, message string) {
	if err := audit.Append(level, message); err != nil {
		r.logger.Errorf("Failed to write audit log: %v", err)
	}
}
