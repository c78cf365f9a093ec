package domain

import (
	"context"
	"time"
)

// BackupJobConfig is the caller-owned description of one backup job.
// A RetentionLimit <= 0 disables rotation and a zero Interval disables scheduling.
type BackupJobConfig struct {
	SourcePath      string
	DestinationPath string
	RetentionLimit  int
	Interval        time.Duration
}

// ArchiveRecord describes a backup archive found in the destination directory.
type ArchiveRecord struct {
	Filename  string
	CreatedAt time.Time
	SizeBytes int64
}

type RunState string

const (
	StateIdle          RunState = "idle"
	StateValidating    RunState = "validating"
	StateArchiving     RunState = "archiving"
	StateRelocating    RunState = "relocating"
	StateRotating      RunState = "rotating"
	StateLoggingResult RunState = "logging_result"
)

type Outcome string

const (
	OutcomeNone    Outcome = "none"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Status is the caller-visible view of the current or last backup run.
type Status struct {
	State       RunState  `json:"state"`
	Outcome     Outcome   `json:"outcome"`
	Message     string    `json:"message"`
	ArchivePath string    `json:"archive_path,omitempty"`
	Files       int       `json:"files"`
	SizeBytes   int64     `json:"size_bytes"`
	Deleted     []string  `json:"deleted,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Progress    float64   `json:"progress"`
}

// Succeeded reports whether the status describes a completed successful run.
func (s Status) Succeeded() bool {
	return s.Outcome == OutcomeSuccess
}

// ScheduleState holds the recurring interval and the next due time.
// A zero NextDueAt means no run is scheduled.
type ScheduleState struct {
	Interval  time.Duration
	NextDueAt time.Time
}

func (s ScheduleState) Armed() bool {
	return s.Interval > 0 && !s.NextDueAt.IsZero()
}

type RotationFailure struct {
	Filename string
	Err      error
}

// RotationReport lists what a rotation pass deleted and what it could not delete.
type RotationReport struct {
	Deleted []string
	Failed  []RotationFailure
}

type BackupExecutor interface {
	Run(ctx context.Context, job BackupJobConfig) (Status, error)
}
