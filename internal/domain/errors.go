package domain

import "errors"

var (
	ErrInvalidPaths         = errors.New("invalid folder paths")
	ErrInvalidSource        = errors.New("source is not a readable directory")
	ErrEmptySource          = errors.New("no files to back up")
	ErrArchiveFailed        = errors.New("archive failed")
	ErrRelocateFailed       = errors.New("relocate failed")
	ErrRotationDeleteFailed = errors.New("rotation delete failed")
	ErrBackupBusy           = errors.New("backup already running")
)
