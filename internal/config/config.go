// Package config loads engine configuration from an optional YAML file with
// LOGKEEP_-prefixed environment overrides. Validation happens at load time:
// a bad level or policy is rejected before any component sees it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/blackwell-systems/logkeep/internal/alert"
	"github.com/blackwell-systems/logkeep/internal/logkit"
	"github.com/blackwell-systems/logkeep/internal/rotation"
)

// ErrInvalidConfig wraps all load-time validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log         LogConfig         `koanf:"log"`
	Rotation    RotationConfig    `koanf:"rotation"`
	Alert       AlertConfig       `koanf:"alert"`
	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`

	// DataDir is the root for logs, diagnostics, backups, and the audit
	// database. Set from the --data-dir flag or LOGKEEP_DATADIR.
	DataDir string `koanf:"datadir"`
}

type LogConfig struct {
	Level   string `koanf:"level"`   // minimum level written to file
	Console string `koanf:"console"` // minimum level mirrored to stderr
}

type RotationConfig struct {
	MaxSize   int64    `koanf:"maxsize"` // bytes
	Retention int      `koanf:"retention"`
	AgeDays   int      `koanf:"agedays"`
	Codecs    []string `koanf:"codecs"`
}

type AlertConfig struct {
	MinFreeMemMB  uint64   `koanf:"minfreememmb"`
	MinFreeDiskMB uint64   `koanf:"minfreediskmb"`
	NotifyCommand string   `koanf:"notifycmd"`
	NotifyArgs    []string `koanf:"notifyargs"`
}

type DiagnosticsConfig struct {
	MaxFrames    int `koanf:"maxframes"`
	ContextLines int `koanf:"contextlines"`
}

// Load reads configuration: defaults, then the YAML file at path (if any),
// then LOGKEEP_* environment variables (LOGKEEP_LOG_LEVEL -> log.level).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("datadir", defaultDataDir())
	k.Set("log.level", "info")
	k.Set("log.console", "warn")
	k.Set("rotation.maxsize", 10*1024*1024)
	k.Set("rotation.retention", 5)
	k.Set("rotation.agedays", 1)
	k.Set("rotation.codecs", []string{"zstd", "xz", "gzip"})
	k.Set("alert.minfreememmb", 256)
	k.Set("alert.minfreediskmb", 1024)
	k.Set("diagnostics.maxframes", 10)
	k.Set("diagnostics.contextlines", 5)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if err := k.Load(env.Provider("LOGKEEP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "LOGKEEP_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects bad levels and policies up front, so no component is
// ever constructed with partial state.
func (c *Config) Validate() error {
	if _, err := logkit.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	if _, err := logkit.ParseLevel(c.Log.Console); err != nil {
		return fmt.Errorf("%w: log.console: %v", ErrInvalidConfig, err)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: rotation: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Policy converts the rotation section into a rotation.Policy.
func (c *Config) Policy() rotation.Policy {
	return rotation.Policy{
		MaxSizeBytes:     c.Rotation.MaxSize,
		RetentionCount:   c.Rotation.Retention,
		AgeThresholdDays: c.Rotation.AgeDays,
		Codecs:           c.Rotation.Codecs,
	}
}

// Thresholds converts the alert section into alert.Thresholds.
func (c *Config) Thresholds() alert.Thresholds {
	const mb = 1024 * 1024
	return alert.Thresholds{
		MinFreeMemoryBytes: c.Alert.MinFreeMemMB * mb,
		MinFreeDiskBytes:   c.Alert.MinFreeDiskMB * mb,
	}
}

// FileLevel returns the validated minimum file level.
func (c *Config) FileLevel() logkit.Level {
	level, _ := logkit.ParseLevel(c.Log.Level)
	return level
}

// ConsoleLevel returns the validated console mirror level.
func (c *Config) ConsoleLevel() logkit.Level {
	level, _ := logkit.ParseLevel(c.Log.Console)
	return level
}

// Derived layout paths, all under DataDir.

func (c *Config) LogDir() string         { return filepath.Join(c.DataDir, "logs") }
func (c *Config) ActivityLog() string    { return filepath.Join(c.LogDir(), "activity.log") }
func (c *Config) ErrorLog() string       { return filepath.Join(c.LogDir(), "error.log") }
func (c *Config) DiagnosticsDir() string { return filepath.Join(c.DataDir, "diagnostics") }
func (c *Config) BackupsDir() string     { return filepath.Join(c.DataDir, "backups") }
func (c *Config) DBPath() string         { return filepath.Join(c.DataDir, "logkeep.db") }
func (c *Config) PIDFile() string        { return filepath.Join(c.DataDir, "watch.pid") }
func (c *Config) LockFile() string       { return filepath.Join(c.DataDir, "rotate.lock") }
func (c *Config) WatchLog() string       { return filepath.Join(c.DataDir, "watch.log") }

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".logkeep"
	}
	return filepath.Join(home, ".logkeep")
}
