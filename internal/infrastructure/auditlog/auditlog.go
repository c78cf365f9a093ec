// Package auditlog writes the human-readable backup history kept next to the
// archives. The file is append-only and is never truncated or rotated.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	FileName = "backup_log.txt"

	TimeLayout = "2006-01-02 15:04:05"
)

const (
	LevelSuccess = "SUCCESS"
	LevelError   = "ERROR"
	LevelRotated = "ROTATED"
	LevelWarning = "WARNING"
)

// Log appends lines of the form "[<timestamp>] <LEVEL>: <message>".
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// Open returns the audit log of a destination directory. The file itself is
// created on the first append.
func Open(dir string) *Log {
	return &Log{path: filepath.Join(dir, FileName), now: time.Now}
}

func (l *Log) Path() string {
	return l.path
}

func (l *Log) Append(level, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("[%s] %s: %s\n", l.now().Format(TimeLayout), level, oneLine(message))

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
