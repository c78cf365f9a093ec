package compressor

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/semmidev/filevault/internal/domain"
)

const stagingPattern = ".backup-*.zip.partial"

// StaleStagingAge is how long a staging file may go unmodified before a new
// build treats it as left behind by a crashed run.
const StaleStagingAge = time.Hour

// ZipArchiver packs every regular file under a source directory into a single
// DEFLATE zip. Symbolic links are skipped so link cycles cannot recurse, and
// directories are not stored as entries, which means empty directories are
// not reproduced on extraction.
type ZipArchiver struct {
	level int
}

func NewZip() *ZipArchiver {
	return &ZipArchiver{level: -1}
}

// NewZipLevel returns an archiver using the given flate level (-1 for default, 0-9).
func NewZipLevel(level int) *ZipArchiver {
	if level < -1 || level > 9 {
		level = -1
	}
	return &ZipArchiver{level: level}
}

func (z *ZipArchiver) Build(ctx context.Context, sourceDir, stagingDir string, progress domain.ProgressFunc) (staged domain.StagedArchive, err error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return staged, fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}
	if !info.IsDir() {
		return staged, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidSource, sourceDir)
	}

	files, err := collectFiles(sourceDir)
	if err != nil {
		return staged, fmt.Errorf("failed to walk source: %w", err)
	}
	if len(files) == 0 {
		return staged, domain.ErrEmptySource
	}

	sweepStaging(stagingDir, time.Now().Add(-StaleStagingAge))

	out, err := os.CreateTemp(stagingDir, stagingPattern)
	if err != nil {
		return staged, fmt.Errorf("failed to create staging file: %w", err)
	}
	stagingPath := out.Name()

	zw := zip.NewWriter(out)
	if z.level >= 0 {
		level := z.level
		zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		})
	}

	// The staging file never outlives a failed build.
	defer func() {
		if err != nil {
			_ = zw.Close()
			_ = out.Close()
			_ = os.Remove(stagingPath)
		}
	}()

	for i, f := range files {
		if err = addFile(zw, sourceDir, f); err != nil {
			return staged, err
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	if err = zw.Close(); err != nil {
		return staged, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err = out.Sync(); err != nil {
		return staged, fmt.Errorf("failed to sync archive: %w", err)
	}
	stat, err := out.Stat()
	if err != nil {
		return staged, fmt.Errorf("failed to stat archive: %w", err)
	}
	if err = out.Close(); err != nil {
		return staged, fmt.Errorf("failed to close archive: %w", err)
	}

	return domain.StagedArchive{
		Path:      stagingPath,
		Files:     len(files),
		SizeBytes: stat.Size(),
	}, nil
}

func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func addFile(zw *zip.Writer, root, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", rel, err)
	}
	header.Name = filepath.ToSlash(rel)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", rel, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", rel, err)
	}
	return nil
}

// IsStagingFile reports whether name is a staging archive.
func IsStagingFile(name string) bool {
	ok, err := filepath.Match(stagingPattern, name)
	return err == nil && ok
}

// sweepStaging removes staging files in dir last modified before cutoff and
// returns their names. Failures are ignored; the next build tries again.
func sweepStaging(dir string, cutoff time.Time) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var removed []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsStagingFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed = append(removed, e.Name())
		}
	}
	return removed
}
