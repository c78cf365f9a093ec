package compressor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/semmidev/filevault/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func readEntries(path string) map[string][]byte {
	r, err := zip.OpenReader(path)
	So(err, ShouldBeNil)
	defer r.Close()

	entries := make(map[string][]byte)
	for _, f := range r.File {
		rc, err := f.Open()
		So(err, ShouldBeNil)
		data, err := io.ReadAll(rc)
		So(err, ShouldBeNil)
		rc.Close()
		entries[f.Name] = data
	}
	return entries
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	So(err, ShouldBeNil)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestZipArchiver(t *testing.T) {
	Convey("Given a ZipArchiver", t, func() {
		archiver := NewZip()
		ctx := context.Background()

		sourceDir := t.TempDir()
		stagingDir := t.TempDir()

		Convey("When archiving a tree with nested files", func() {
			big := make([]byte, 10*1024)
			for i := range big {
				big[i] = byte(i % 251)
			}
			So(os.WriteFile(filepath.Join(sourceDir, "big.bin"), big, 0644), ShouldBeNil)
			So(os.WriteFile(filepath.Join(sourceDir, "empty.txt"), nil, 0644), ShouldBeNil)
			So(os.MkdirAll(filepath.Join(sourceDir, "sub"), 0755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(sourceDir, "sub", "nested.txt"), []byte("nested"), 0644), ShouldBeNil)

			var calls [][2]int
			staged, err := archiver.Build(ctx, sourceDir, stagingDir, func(done, total int) {
				calls = append(calls, [2]int{done, total})
			})

			Convey("It should stage an archive with every file under relative paths", func() {
				So(err, ShouldBeNil)
				So(staged.Files, ShouldEqual, 3)
				So(staged.SizeBytes, ShouldBeGreaterThan, 0)
				So(filepath.Dir(staged.Path), ShouldEqual, stagingDir)
				So(IsStagingFile(filepath.Base(staged.Path)), ShouldBeTrue)

				entries := readEntries(staged.Path)
				So(len(entries), ShouldEqual, 3)
				So(entries["big.bin"], ShouldResemble, big)
				So(len(entries["empty.txt"]), ShouldEqual, 0)
				So(string(entries["sub/nested.txt"]), ShouldEqual, "nested")
			})

			Convey("It should report progress once per file up to the total", func() {
				So(err, ShouldBeNil)
				So(len(calls), ShouldEqual, 3)
				for i, c := range calls {
					So(c[0], ShouldEqual, i+1)
					So(c[1], ShouldEqual, 3)
				}
			})
		})

		Convey("When the tree contains a symlink", func() {
			So(os.WriteFile(filepath.Join(sourceDir, "real.txt"), []byte("real"), 0644), ShouldBeNil)
			if err := os.Symlink(sourceDir, filepath.Join(sourceDir, "loop")); err != nil {
				SkipSo(err, ShouldBeNil)
				return
			}

			staged, err := archiver.Build(ctx, sourceDir, stagingDir, nil)

			Convey("It should skip the link", func() {
				So(err, ShouldBeNil)
				So(staged.Files, ShouldEqual, 1)
				entries := readEntries(staged.Path)
				So(entries, ShouldContainKey, "real.txt")
				So(entries, ShouldNotContainKey, "loop")
			})
		})

		Convey("When the source only holds empty directories", func() {
			So(os.MkdirAll(filepath.Join(sourceDir, "a", "b"), 0755), ShouldBeNil)

			_, err := archiver.Build(ctx, sourceDir, stagingDir, nil)

			Convey("It should fail with ErrEmptySource and leave no staging file", func() {
				So(errors.Is(err, domain.ErrEmptySource), ShouldBeTrue)
				So(listDir(stagingDir), ShouldBeEmpty)
			})
		})

		Convey("When the source does not exist", func() {
			_, err := archiver.Build(ctx, filepath.Join(sourceDir, "missing"), stagingDir, nil)

			Convey("It should fail with ErrInvalidSource", func() {
				So(errors.Is(err, domain.ErrInvalidSource), ShouldBeTrue)
			})
		})

		Convey("When the source is a regular file", func() {
			file := filepath.Join(sourceDir, "file.txt")
			So(os.WriteFile(file, []byte("x"), 0644), ShouldBeNil)

			_, err := archiver.Build(ctx, file, stagingDir, nil)

			Convey("It should fail with ErrInvalidSource", func() {
				So(errors.Is(err, domain.ErrInvalidSource), ShouldBeTrue)
			})
		})

		Convey("When the staging directory is invalid", func() {
			So(os.WriteFile(filepath.Join(sourceDir, "a.txt"), []byte("a"), 0644), ShouldBeNil)

			_, err := archiver.Build(ctx, sourceDir, "/invalid/path/staging", nil)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create staging file")
			})
		})

		Convey("When a source file vanishes after the staging file exists", func() {
			for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
				So(os.WriteFile(filepath.Join(sourceDir, name), []byte(name), 0644), ShouldBeNil)
			}

			var stagedDuringBuild []string
			_, err := archiver.Build(ctx, sourceDir, stagingDir, func(done, total int) {
				if done == 1 {
					stagedDuringBuild = listDir(stagingDir)
					So(os.Remove(filepath.Join(sourceDir, "b.txt")), ShouldBeNil)
				}
			})

			Convey("It should fail and remove the partial archive", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to open source file")
				So(len(stagedDuringBuild), ShouldEqual, 1)
				So(IsStagingFile(stagedDuringBuild[0]), ShouldBeTrue)
				So(listDir(stagingDir), ShouldBeEmpty)
			})
		})

		Convey("When earlier runs left staging files behind", func() {
			So(os.WriteFile(filepath.Join(sourceDir, "a.txt"), []byte("a"), 0644), ShouldBeNil)
			stale := filepath.Join(stagingDir, ".backup-111.zip.partial")
			fresh := filepath.Join(stagingDir, ".backup-222.zip.partial")
			keep := filepath.Join(stagingDir, "backup_20260101_000000.000.zip")
			for _, p := range []string{stale, fresh, keep} {
				So(os.WriteFile(p, []byte("x"), 0644), ShouldBeNil)
			}
			old := time.Now().Add(-2 * StaleStagingAge)
			So(os.Chtimes(stale, old, old), ShouldBeNil)
			So(os.Chtimes(keep, old, old), ShouldBeNil)

			staged, err := archiver.Build(ctx, sourceDir, stagingDir, nil)

			Convey("It should remove only the abandoned ones", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(stale)
				So(os.IsNotExist(statErr), ShouldBeTrue)
				names := listDir(stagingDir)
				So(len(names), ShouldEqual, 3)
				So(names, ShouldContain, ".backup-222.zip.partial")
				So(names, ShouldContain, filepath.Base(staged.Path))
				So(names, ShouldContain, "backup_20260101_000000.000.zip")
			})
		})

		Convey("When a compression level is configured", func() {
			So(os.WriteFile(filepath.Join(sourceDir, "a.txt"), []byte("aaaaaaaaaaaaaaaa"), 0644), ShouldBeNil)

			staged, err := NewZipLevel(9).Build(ctx, sourceDir, stagingDir, nil)

			Convey("It should produce a readable archive", func() {
				So(err, ShouldBeNil)
				So(string(readEntries(staged.Path)["a.txt"]), ShouldEqual, "aaaaaaaaaaaaaaaa")
			})
		})
	})
}

func TestIsStagingFile(t *testing.T) {
	Convey("IsStagingFile", t, func() {
		So(IsStagingFile(".backup-123.zip.partial"), ShouldBeTrue)
		So(IsStagingFile("backup_20260101_120000.000.zip"), ShouldBeFalse)
		So(IsStagingFile("notes.txt"), ShouldBeFalse)
	})
}

func TestSweepStaging(t *testing.T) {
	Convey("Given a directory with staging files of different ages", t, func() {
		dir := t.TempDir()
		cutoff := time.Now().Add(-time.Hour)
		old := cutoff.Add(-time.Minute)

		So(os.WriteFile(filepath.Join(dir, ".backup-1.zip.partial"), nil, 0644), ShouldBeNil)
		So(os.Chtimes(filepath.Join(dir, ".backup-1.zip.partial"), old, old), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, ".backup-2.zip.partial"), nil, 0644), ShouldBeNil)
		So(os.Mkdir(filepath.Join(dir, ".backup-3.zip.partial"), 0755), ShouldBeNil)
		So(os.Chtimes(filepath.Join(dir, ".backup-3.zip.partial"), old, old), ShouldBeNil)

		removed := sweepStaging(dir, cutoff)

		So(removed, ShouldResemble, []string{".backup-1.zip.partial"})
		So(listDir(dir), ShouldResemble, []string{".backup-2.zip.partial", ".backup-3.zip.partial"})
	})

	Convey("A missing directory yields nothing", t, func() {
		So(sweepStaging(filepath.Join(t.TempDir(), "gone"), time.Now()), ShouldBeEmpty)
	})
}
