package domain

import "context"

type Storage interface {
	ListArchives(ctx context.Context) ([]ArchiveRecord, error)
	Place(ctx context.Context, stagedPath, filename string) (string, error)
	Delete(ctx context.Context, filename string) error
}

type Notifier interface {
	Notify(ctx context.Context, status Status) error
}
