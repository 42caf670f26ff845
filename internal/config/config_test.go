package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/logkeep/internal/logkit"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FileLevel() != logkit.LevelInfo {
		t.Errorf("default file level = %v, want INFO", cfg.FileLevel())
	}
	if cfg.ConsoleLevel() != logkit.LevelWarn {
		t.Errorf("default console level = %v, want WARN", cfg.ConsoleLevel())
	}
	if cfg.Rotation.Retention != 5 {
		t.Errorf("default retention = %d, want 5", cfg.Rotation.Retention)
	}
	if got := cfg.Policy().Codecs; len(got) != 3 || got[0] != "zstd" {
		t.Errorf("default codecs = %v, want zstd first", got)
	}
	if cfg.Thresholds().MinFreeMemoryBytes != 256*1024*1024 {
		t.Errorf("default memory floor = %d, want 256 MiB", cfg.Thresholds().MinFreeMemoryBytes)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logkeep.yaml")
	content := `
datadir: /var/lib/logkeep
log:
  level: debug
  console: error
rotation:
  maxsize: 1048576
  retention: 3
  codecs: [gzip]
alert:
  minfreememmb: 512
  notifycmd: mail
  notifyargs: ["-s"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/logkeep" {
		t.Errorf("datadir = %q", cfg.DataDir)
	}
	if cfg.FileLevel() != logkit.LevelDebug || cfg.ConsoleLevel() != logkit.LevelError {
		t.Errorf("levels = %v/%v, want DEBUG/ERROR", cfg.FileLevel(), cfg.ConsoleLevel())
	}
	if cfg.Policy().MaxSizeBytes != 1048576 || cfg.Policy().RetentionCount != 3 {
		t.Errorf("policy = %+v", cfg.Policy())
	}
	if cfg.Alert.NotifyCommand != "mail" || len(cfg.Alert.NotifyArgs) != 1 {
		t.Errorf("notify = %q %v", cfg.Alert.NotifyCommand, cfg.Alert.NotifyArgs)
	}
	if cfg.ActivityLog() != "/var/lib/logkeep/logs/activity.log" {
		t.Errorf("ActivityLog = %q", cfg.ActivityLog())
	}
	if cfg.DBPath() != "/var/lib/logkeep/logkeep.db" {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("LOGKEEP_LOG_LEVEL", "trace")
	t.Setenv("LOGKEEP_ROTATION_RETENTION", "9")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FileLevel() != logkit.LevelTrace {
		t.Errorf("env level override not applied: %v", cfg.FileLevel())
	}
	if cfg.Rotation.Retention != 9 {
		t.Errorf("env retention override not applied: %d", cfg.Rotation.Retention)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	t.Setenv("LOGKEEP_LOG_LEVEL", "shouty")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	t.Setenv("LOGKEEP_ROTATION_RETENTION", "0")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load error = %v, want ErrInvalidConfig for missing explicit file", err)
	}
}
