package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/semmidev/filevault/internal/adapter/compressor"
	"github.com/semmidev/filevault/internal/adapter/storage"
	"github.com/semmidev/filevault/internal/domain"
	"github.com/semmidev/filevault/internal/infrastructure/auditlog"
	"github.com/semmidev/filevault/internal/infrastructure/events"
	"github.com/semmidev/filevault/internal/infrastructure/logger"
)

type auditLine struct {
	Level   string
	Message string
}

type recordingAudit struct {
	mu    sync.Mutex
	lines []auditLine
}

func (a *recordingAudit) Append(level, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, auditLine{level, message})
	return nil
}

func (a *recordingAudit) levels() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, l := range a.lines {
		out = append(out, l.Level)
	}
	return out
}

type memStorage struct {
	records   []domain.ArchiveRecord
	failOn    map[string]bool
	deleted   []string
	listError error
}

func (m *memStorage) ListArchives(ctx context.Context) ([]domain.ArchiveRecord, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	out := append([]domain.ArchiveRecord(nil), m.records...)
	storage.SortRecords(out)
	return out, nil
}

func (m *memStorage) Place(ctx context.Context, stagedPath, filename string) (string, error) {
	return "", errors.New("not supported")
}

func (m *memStorage) Delete(ctx context.Context, filename string) error {
	if m.failOn[filename] {
		return fmt.Errorf("failed to delete file: permission denied")
	}
	m.deleted = append(m.deleted, filename)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []domain.Status
}

func (n *recordingNotifier) Notify(ctx context.Context, status domain.Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
	return errors.New("offline")
}

// blockingArchiver stages a tiny archive only after release is closed.
type blockingArchiver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   int
	mu      sync.Mutex
}

func newBlockingArchiver() *blockingArchiver {
	return &blockingArchiver{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingArchiver) Build(ctx context.Context, sourceDir, stagingDir string, progress domain.ProgressFunc) (domain.StagedArchive, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	b.once.Do(func() { close(b.entered) })
	<-b.release

	f, err := os.CreateTemp(stagingDir, ".backup-*.zip.partial")
	if err != nil {
		return domain.StagedArchive{}, err
	}
	f.WriteString("zip")
	f.Close()
	if progress != nil {
		progress(1, 1)
	}
	return domain.StagedArchive{Path: f.Name(), Files: 1, SizeBytes: 3}, nil
}

// vanishingArchiver removes victim once the first file is in the archive,
// the way a file deleted during a backup would.
type vanishingArchiver struct {
	inner  domain.Archiver
	victim string
}

func newVanishingArchiver(victim string) *vanishingArchiver {
	return &vanishingArchiver{inner: compressor.NewZip(), victim: victim}
}

func (v *vanishingArchiver) Build(ctx context.Context, sourceDir, stagingDir string, progress domain.ProgressFunc) (domain.StagedArchive, error) {
	return v.inner.Build(ctx, sourceDir, stagingDir, func(done, total int) {
		if done == 1 {
			_ = os.Remove(v.victim)
		}
		if progress != nil {
			progress(done, total)
		}
	})
}

func newTestRunner(archiver domain.Archiver, opts ...RunnerOption) *Runner {
	return NewRunner(
		archiver,
		func(dir string) (domain.Storage, error) { return storage.NewLocal(dir) },
		func(dir string) AuditLog { return auditlog.Open(dir) },
		storage.ArchiveName,
		logger.NewNop(),
		opts...,
	)
}

func newZipRunner(opts ...RunnerOption) *Runner {
	return newTestRunner(compressor.NewZip(), opts...)
}

func writeFiles(dir string, names ...string) {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			panic(err)
		}
		if err := os.WriteFile(path, []byte("content of "+name), 0644); err != nil {
			panic(err)
		}
	}
}

func dirNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		panic(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func archivesIn(dir string) []string {
	var out []string
	for _, name := range dirNames(dir) {
		if storage.IsArchiveName(name) {
			out = append(out, name)
		}
	}
	return out
}

func auditLines(dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, auditlog.FileName))
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// drainEvents returns what is buffered on ch without waiting for more.
func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
