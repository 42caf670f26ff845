package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blackwell-systems/logkeep/internal/alert"
	"github.com/blackwell-systems/logkeep/internal/config"
	"github.com/blackwell-systems/logkeep/internal/diagnostics"
	"github.com/blackwell-systems/logkeep/internal/intercept"
	"github.com/blackwell-systems/logkeep/internal/logkit"
	"github.com/blackwell-systems/logkeep/internal/recovery"
	"github.com/blackwell-systems/logkeep/internal/rotation"
	"github.com/blackwell-systems/logkeep/internal/store"
)

// defaultConfigFile returns ~/.logkeep/config.yaml without requiring it to exist.
func defaultConfigFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".logkeep", "config.yaml"), nil
}

// ensureDataDirs creates the data directory tree the engine writes into.
func ensureDataDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.LogDir(), cfg.DiagnosticsDir(), cfg.BackupsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// openStore opens the audit database and makes sure the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return st, nil
}

// newManager builds the rotation manager, recording every completed pass to
// the audit store when one is given.
func newManager(cfg *config.Config, st *store.Store) (*rotation.Manager, error) {
	opts := []rotation.Option{}
	if st != nil {
		opts = append(opts, rotation.WithRecorder(func(ev rotation.Event) {
			_ = st.InsertRotation(&store.Rotation{
				Timestamp:   ev.Time,
				File:        ev.File,
				RotatedTo:   ev.RotatedTo,
				PrunedCount: len(ev.Removed),
			})
		}))
	}
	mgr, err := rotation.New(cfg.Policy(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build rotation manager: %w", err)
	}
	return mgr, nil
}

// newGate builds the alert gate from configured thresholds, wiring the
// notification command when one is configured.
func newGate(cfg *config.Config) *alert.Gate {
	opts := []alert.Option{}
	if cfg.Alert.NotifyCommand != "" {
		opts = append(opts, alert.WithSender(alert.CommandSender{
			Name: cfg.Alert.NotifyCommand,
			Args: cfg.Alert.NotifyArgs,
		}))
	}
	return alert.NewGate(cfg.Thresholds(), cfg.DataDir, opts...)
}

// newInterceptor wires the full capture pipeline: error log, diagnostic
// collector, alert gate, recovery dispatcher, audit store.
func newInterceptor(cfg *config.Config, st *store.Store, dispatcher *recovery.Dispatcher) (*intercept.Interceptor, *logkit.Logger, error) {
	mgr, err := newManager(cfg, st)
	if err != nil {
		return nil, nil, err
	}

	errLog, err := logkit.New(cfg.ErrorLog(),
		logkit.WithMinLevel(cfg.FileLevel()),
		logkit.WithRotation(mgr),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open error log: %w", err)
	}

	collector, err := diagnostics.New(cfg.DiagnosticsDir(),
		diagnostics.WithMaxFrames(cfg.Diagnostics.MaxFrames),
		diagnostics.WithContextLines(cfg.Diagnostics.ContextLines),
	)
	if err != nil {
		errLog.Close()
		return nil, nil, fmt.Errorf("failed to build diagnostic collector: %w", err)
	}

	ic := intercept.New(errLog, collector, newGate(cfg), dispatcher,
		intercept.WithStore(st))
	return ic, errLog, nil
}
