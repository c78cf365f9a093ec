package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

const (
	DefaultMaxBackups = 5
	ScheduleNone      = "None"
)

// Settings is the persisted user selection. A nil MaxBackups means rotation
// is disabled.
type Settings struct {
	SourceDir  string `json:"source_dir"`
	DestDir    string `json:"dest_dir"`
	MaxBackups *int   `json:"max_backups"`
	Schedule   string `json:"schedule"`
}

func DefaultSettings() Settings {
	limit := DefaultMaxBackups
	return Settings{
		MaxBackups: &limit,
		Schedule:   ScheduleNone,
	}
}

// RetentionLimit returns the limit as used by rotation, where <= 0 is disabled.
func (s Settings) RetentionLimit() int {
	if s.MaxBackups == nil {
		return 0
	}
	return *s.MaxBackups
}

// PathsConfigured reports whether both folders have been chosen.
func (s Settings) PathsConfigured() bool {
	return s.SourceDir != "" && s.DestDir != ""
}

// RetentionPresets are the max-backups menu values; nil means disabled.
var RetentionPresets = []*int{nil, intPtr(1), intPtr(3), intPtr(5), intPtr(10), intPtr(20), intPtr(50)}

func intPtr(n int) *int { return &n }

// ParseRetention accepts a non-negative count or "disabled". Zero is stored
// as disabled.
func ParseRetention(value string) (*int, error) {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "disabled") || strings.EqualFold(v, "none") {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid max backups %q: want a non-negative number or \"disabled\"", value)
	}
	if n == 0 {
		return nil, nil
	}
	return &n, nil
}

// NextRetention returns the preset following current, wrapping around.
func NextRetention(current *int) *int {
	for i, p := range RetentionPresets {
		if (p == nil) == (current == nil) && (p == nil || *p == *current) {
			return clonePtr(RetentionPresets[(i+1)%len(RetentionPresets)])
		}
	}
	return nil
}

// FormatRetention renders a max-backups value the way menus show it.
func FormatRetention(limit *int) string {
	if limit == nil || *limit <= 0 {
		return "Disabled"
	}
	return strconv.Itoa(*limit)
}

func clonePtr(p *int) *int {
	if p == nil {
		return nil
	}
	return intPtr(*p)
}

type Warner interface {
	Warnf(template string, args ...interface{})
}

// SettingsStore persists Settings as a JSON document. Read problems never
// surface as errors: the store falls back to defaults and logs a warning.
type SettingsStore struct {
	path   string
	logger Warner
	mu     sync.Mutex
}

func NewSettingsStore(path string, logger Warner) *SettingsStore {
	return &SettingsStore{path: path, logger: logger}
}

func (s *SettingsStore) Path() string {
	return s.path
}

// Load returns the saved settings, or the defaults when the file is missing
// or unreadable.
func (s *SettingsStore) Load() Settings {
	settings, err := s.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warnf("Failed to load settings from %s: %v", s.path, err)
		}
		return DefaultSettings()
	}
	return settings
}

// Read is Load without the fallback. A missing file yields an error matching
// os.ErrNotExist.
func (s *SettingsStore) Read() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return settings, err
	}

	// max_backups defaults to 5 when the key is absent and stays nil when it
	// is an explicit null.
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return settings, err
	}

	var decoded Settings
	if err := json.Unmarshal(data, &decoded); err != nil {
		return settings, err
	}

	settings.SourceDir = decoded.SourceDir
	settings.DestDir = decoded.DestDir
	if _, ok := raw["max_backups"]; ok {
		settings.MaxBackups = decoded.MaxBackups
	}
	if decoded.Schedule != "" {
		settings.Schedule = decoded.Schedule
	}

	return settings, nil
}

// Save writes settings atomically through a temp file in the same directory.
func (s *SettingsStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
