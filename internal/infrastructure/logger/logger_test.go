package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given the Logger package", t, func() {
		Convey("New function", func() {
			Convey("When creating a logger with console output only", func() {
				logger, err := New("info", "")

				Convey("It should create a logger successfully", func() {
					So(err, ShouldBeNil)
					So(logger, ShouldNotBeNil)
					So(func() { logger.Info("Test log") }, ShouldNotPanic)
				})
			})

			Convey("When creating a logger with a valid log file", func() {
				logFile := filepath.Join(t.TempDir(), "logs", "test.log")

				logger, err := New("debug", logFile)

				Convey("It should create the directory and log file", func() {
					So(err, ShouldBeNil)
					So(logger, ShouldNotBeNil)

					logger.Debug("Test debug log")
					logger.Sync()

					_, err := os.Stat(logFile)
					So(err, ShouldBeNil)

					logger.Close()
				})
			})

			Convey("When creating a logger with an invalid log level", func() {
				var buf bytes.Buffer
				logger, err := NewWithOptions(Options{Level: "invalid", Console: &buf})

				Convey("It should default to Info level", func() {
					So(err, ShouldBeNil)
					logger.Debug("hidden debug")
					logger.Info("visible info")
					logger.Sync()
					So(buf.String(), ShouldContainSubstring, "visible info")
					So(buf.String(), ShouldNotContainSubstring, "hidden debug")
				})
			})

			Convey("When creating a logger with an invalid log file path", func() {
				blocker := filepath.Join(t.TempDir(), "blocker")
				So(os.WriteFile(blocker, []byte("x"), 0644), ShouldBeNil)

				logger, err := New("info", filepath.Join(blocker, "sub", "test.log"))

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to create log directory")
					So(logger, ShouldBeNil)
				})
			})
		})

		Convey("NewWithOptions", func() {
			Convey("When the console is discarded and a file is set", func() {
				logFile := filepath.Join(t.TempDir(), "quiet.log")
				logger, err := NewWithOptions(Options{Level: "info", File: logFile, Console: io.Discard})
				So(err, ShouldBeNil)

				logger.Named("runner").Infof("Backup %s", "done")
				logger.Sync()

				Convey("It should only write JSON to the file", func() {
					data, err := os.ReadFile(logFile)
					So(err, ShouldBeNil)
					So(string(data), ShouldContainSubstring, `"msg":"Backup done"`)
					So(string(data), ShouldContainSubstring, `"logger":"runner"`)
				})
			})
		})

		Convey("NewNop", func() {
			So(func() { NewNop().Errorf("ignored %d", 1) }, ShouldNotPanic)
		})

		Convey("Close method", func() {
			Convey("When closing a logger with console output only", func() {
				logger, err := New("info", "")
				So(err, ShouldBeNil)

				Convey("It should close without error", func() {
					So(func() { logger.Close() }, ShouldNotPanic)
				})
			})
		})
	})
}
