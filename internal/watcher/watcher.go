// Package watcher runs log maintenance for writers outside this process.
// The engine's own Logger checks rotation after every write, but collaborator
// scripts may append to the managed logs directly; the watcher picks up
// those writes via fsnotify and runs the same rotation pass, plus a periodic
// sweep that compresses aged rotated files and prunes the backups directory.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/logkeep/internal/lockfile"
	"github.com/blackwell-systems/logkeep/internal/retention"
	"github.com/blackwell-systems/logkeep/internal/rotation"
)

const defaultSweepInterval = 10 * time.Minute

// Options configures the periodic maintenance sweep.
type Options struct {
	SweepInterval time.Duration
	BackupsDir    string // pruned with BackupsKeep on each sweep; empty disables
	BackupsPrefix string
	BackupsKeep   int
	LockPath      string // advisory lock for the sweep; empty disables locking
}

// Watcher watches managed log files for external writes and triggers the
// rotation manager on each one.
type Watcher struct {
	mgr    *rotation.Manager
	files  map[string]bool // absolute paths of managed logs
	logDir string
	opts   Options

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a watcher over the given managed log files, which must share
// one directory.
func New(mgr *rotation.Manager, files []string, opts Options) (*Watcher, error) {
	if mgr == nil {
		return nil, fmt.Errorf("watcher: rotation manager cannot be nil")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("watcher: no files to watch")
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}

	absDir, err := filepath.Abs(filepath.Dir(files[0]))
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve %s: %w", files[0], err)
	}
	managed := make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watcher: resolve %s: %w", f, err)
		}
		if filepath.Dir(abs) != absDir {
			return nil, fmt.Errorf("watcher: %s is outside the watched directory", f)
		}
		managed[abs] = true
	}

	return &Watcher{
		mgr:    mgr,
		files:  managed,
		logDir: absDir,
		opts:   opts,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching. It runs one immediate maintenance sweep so a
// backlog from downtime is handled without waiting a full interval.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if err := fsw.Add(w.logDir); err != nil {
		fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", w.logDir, err)
	}
	w.fsw = fsw

	w.sweep()

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop halts the watcher and waits for in-flight work, including any
// background compressions the rotation manager started.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	w.mgr.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			if _, err := w.mgr.MaybeRotate(abs); err != nil {
				slog.Warn("watcher: rotation failed", "file", abs, "error", err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher: fsnotify error", "error", err)
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

// sweep compresses aged rotated files and prunes the backups directory,
// guarded by the advisory lock so two maintenance passes never overlap.
func (w *Watcher) sweep() {
	if w.opts.LockPath != "" {
		lock, err := lockfile.Acquire(w.opts.LockPath)
		if err != nil {
			slog.Warn("watcher: sweep skipped", "error", err)
			return
		}
		defer lock.Release()
	}

	for path := range w.files {
		prefix := archivePrefix(path)
		if _, err := w.mgr.CompressAged(filepath.Dir(path), prefix); err != nil {
			slog.Warn("watcher: aged compression sweep failed", "file", path, "error", err)
		}
	}

	if w.opts.BackupsDir != "" && w.opts.BackupsKeep >= 1 {
		if _, err := os.Stat(w.opts.BackupsDir); err == nil {
			removed, err := retention.Prune(w.opts.BackupsDir, w.opts.BackupsPrefix, w.opts.BackupsKeep)
			if err != nil {
				slog.Warn("watcher: backup prune failed", "dir", w.opts.BackupsDir, "error", err)
			} else if len(removed) > 0 {
				slog.Info("watcher: pruned backups", "count", len(removed))
			}
		}
	}
}

// archivePrefix is the prefix rotated forms of a log share:
// activity.log -> "activity-".
func archivePrefix(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-"
}
