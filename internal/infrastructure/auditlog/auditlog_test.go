package auditlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLog(t *testing.T) {
	Convey("Given an audit log in a destination directory", t, func() {
		dir := t.TempDir()
		log := Open(dir)
		log.now = func() time.Time { return time.Date(2026, 10, 19, 14, 3, 9, 0, time.Local) }

		Convey("It should live at backup_log.txt", func() {
			So(log.Path(), ShouldEqual, filepath.Join(dir, FileName))
			_, err := os.Stat(log.Path())
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("When appending several events", func() {
			So(log.Append(LevelSuccess, "backup_a.zip -> /dest/backup_a.zip"), ShouldBeNil)
			So(log.Append(LevelError, "disk full\nwhile writing"), ShouldBeNil)

			Convey("It should write one formatted line per event", func() {
				data, err := os.ReadFile(log.Path())
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
				So(len(lines), ShouldEqual, 2)
				So(lines[0], ShouldEqual, "[2026-10-19 14:03:09] SUCCESS: backup_a.zip -> /dest/backup_a.zip")
				So(lines[1], ShouldEqual, "[2026-10-19 14:03:09] ERROR: disk full while writing")
			})

			Convey("It should append rather than truncate on reopen", func() {
				again := Open(dir)
				So(again.Append(LevelRotated, "deleted backup_old.zip"), ShouldBeNil)
				data, _ := os.ReadFile(log.Path())
				So(strings.Count(string(data), "\n"), ShouldEqual, 3)
			})
		})

		Convey("When the directory is missing", func() {
			missing := Open(filepath.Join(dir, "gone"))
			err := missing.Append(LevelError, "x")

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to open audit log")
			})
		})
	})
}
