package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultSettingsFile = "backup_settings.json"

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Backup BackupConfig `mapstructure:"backup"`
	Notify NotifyConfig `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	LockFile string `mapstructure:"lock_file"`
}

type BackupConfig struct {
	SettingsFile string `mapstructure:"settings_file"`

	// StagingDir holds archives while they are written. Empty means the
	// destination directory itself, which keeps relocation a same-device rename.
	StagingDir       string        `mapstructure:"staging_dir"`
	CompressionLevel int           `mapstructure:"compression_level"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Load reads the YAML config at path. A missing file is not an error: defaults
// and FILEVAULT_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("filevault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "filevault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.lock_file", "")
	v.SetDefault("backup.settings_file", DefaultSettingsFile)
	v.SetDefault("backup.staging_dir", "")
	v.SetDefault("backup.compression_level", -1)
	v.SetDefault("backup.tick_interval", time.Second)
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backup.SettingsFile == "" {
		return fmt.Errorf("backup.settings_file is required")
	}
	if c.Backup.TickInterval <= 0 {
		return fmt.Errorf("backup.tick_interval must be positive")
	}
	if c.Backup.TickInterval > time.Minute {
		return fmt.Errorf("backup.tick_interval must not exceed 1m, got %s", c.Backup.TickInterval)
	}
	if c.Backup.CompressionLevel < -1 || c.Backup.CompressionLevel > 9 {
		return fmt.Errorf("backup.compression_level must be between -1 and 9")
	}

	if tg := c.Notify.Telegram; tg.Enabled {
		if tg.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when enabled")
		}
		if tg.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when enabled")
		}
	}

	return nil
}

// LockPath returns the instance lock path, defaulting to a file beside the
// settings file.
func (c *Config) LockPath() string {
	if c.App.LockFile != "" {
		return c.App.LockFile
	}
	return c.Backup.SettingsFile + ".lock"
}
