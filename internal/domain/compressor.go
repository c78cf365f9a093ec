package domain

import "context"

// ProgressFunc is called after each file is added to an archive.
type ProgressFunc func(done, total int)

// StagedArchive is an archive written to a staging location, not yet visible
// under its final name.
type StagedArchive struct {
	Path      string
	Files     int
	SizeBytes int64
}

type Archiver interface {
	Build(ctx context.Context, sourceDir, stagingDir string, progress ProgressFunc) (StagedArchive, error)
}
