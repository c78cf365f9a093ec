package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/semmidev/filevault/internal/domain"
)

const (
	ArchivePrefix = "backup_"
	ArchiveExt    = ".zip"
	ArchiveGlob   = ArchivePrefix + "*" + ArchiveExt

	// TimestampLayout gives millisecond resolution and sorts chronologically
	// under lexicographic order.
	TimestampLayout = "20060102_150405.000"
)

// legacyLayouts are stamps written by earlier releases of the desktop tool.
var legacyLayouts = []string{
	"2006-01-02_15-04-05",
	"01-02-2006_15-04-05",
	"20060102_150405",
}

var ErrArchiveExists = errors.New("archive already exists")

// LocalStorage is the destination directory that receives finished archives.
type LocalStorage struct {
	basePath string
}

// NewLocal opens an existing destination directory. It never creates one: a
// missing destination is a configuration error the caller must report.
func NewLocal(basePath string) (*LocalStorage, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("backup path %s is not a directory", basePath)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// ArchiveName returns the archive filename for a run started at t.
func ArchiveName(t time.Time) string {
	return ArchivePrefix + t.Format(TimestampLayout) + ArchiveExt
}

// ParseArchiveTime extracts the creation stamp from an archive filename.
func ParseArchiveTime(filename string) (time.Time, error) {
	if !strings.HasPrefix(filename, ArchivePrefix) || !strings.HasSuffix(filename, ArchiveExt) {
		return time.Time{}, fmt.Errorf("invalid filename format: %s", filename)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(filename, ArchivePrefix), ArchiveExt)

	if t, err := time.ParseInLocation(TimestampLayout, stamp, time.Local); err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, stamp, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found in %s", filename)
}

// ListArchives returns every regular file matching backup_*.zip, ordered
// oldest first. Creation time comes from the filename stamp and falls back to
// the modification time; equal times are ordered by filename.
func (l *LocalStorage) ListArchives(ctx context.Context) ([]domain.ArchiveRecord, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	records := make([]domain.ArchiveRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsArchiveName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
		}

		created, err := ParseArchiveTime(info.Name())
		if err != nil {
			created = info.ModTime()
		}
		records = append(records, domain.ArchiveRecord{
			Filename:  info.Name(),
			CreatedAt: created,
			SizeBytes: info.Size(),
		})
	}

	SortRecords(records)
	return records, nil
}

// IsArchiveName reports whether name matches the backup_*.zip convention.
func IsArchiveName(name string) bool {
	ok, err := filepath.Match(ArchiveGlob, name)
	return err == nil && ok
}

// SortRecords orders records by creation time ascending, then by filename.
func SortRecords(records []domain.ArchiveRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].Filename < records[j].Filename
	})
}

// Place moves a staged archive into the destination under filename. The move
// never overwrites an existing file and the final name only ever refers to a
// complete archive.
func (l *LocalStorage) Place(ctx context.Context, stagedPath, filename string) (string, error) {
	destPath := filepath.Join(l.basePath, filename)

	if filepath.Dir(stagedPath) != filepath.Clean(l.basePath) {
		local, err := l.copyIntoDestination(stagedPath)
		if err != nil {
			return "", err
		}
		if err := os.Remove(stagedPath); err != nil && !os.IsNotExist(err) {
			_ = os.Remove(local)
			return "", fmt.Errorf("failed to remove staged file: %w", err)
		}
		stagedPath = local
	}

	if err := publish(stagedPath, destPath); err != nil {
		_ = os.Remove(stagedPath)
		return "", err
	}
	return destPath, nil
}

// publish links src to dst and drops src. Filesystems without hard links get
// a rename guarded by an existence check.
func publish(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		return os.Remove(src)
	}
	if os.IsExist(err) {
		return fmt.Errorf("%w: %s", ErrArchiveExists, filepath.Base(dst))
	}
	if !linkUnsupported(err) {
		return fmt.Errorf("failed to move archive: %w", err)
	}

	if _, statErr := os.Lstat(dst); statErr == nil {
		return fmt.Errorf("%w: %s", ErrArchiveExists, filepath.Base(dst))
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move archive: %w", err)
	}
	return nil
}

func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EXDEV)
}

func (l *LocalStorage) copyIntoDestination(stagedPath string) (path string, err error) {
	source, err := os.Open(stagedPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	dest, err := os.CreateTemp(l.basePath, ".backup-*.zip.partial")
	if err != nil {
		return "", fmt.Errorf("failed to create dest: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dest.Close()
			_ = os.Remove(dest.Name())
		}
	}()

	if _, err = io.Copy(dest, source); err != nil {
		return "", fmt.Errorf("failed to copy: %w", err)
	}
	if err = dest.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync: %w", err)
	}
	if err = dest.Close(); err != nil {
		return "", fmt.Errorf("failed to close dest: %w", err)
	}
	return dest.Name(), nil
}

func (l *LocalStorage) Delete(ctx context.Context, filename string) error {
	filePath := filepath.Join(l.basePath, filename)
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
