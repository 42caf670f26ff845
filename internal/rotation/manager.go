package rotation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blackwell-systems/logkeep/internal/retention"
)

// Event describes one completed rotation pass, for audit recording.
type Event struct {
	Time      time.Time
	File      string
	RotatedTo string
	Removed   []string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRecorder registers a callback invoked after each successful rotation.
// The CLI uses it to persist rotation history to the audit store.
func WithRecorder(record func(Event)) Option {
	return func(m *Manager) { m.record = record }
}

// Manager performs rotate-then-compress-then-prune for managed log files.
// Rotation is a rename, not a copy: an in-flight append lands in either the
// old or the new inode, never a corrupted mix. Compression runs as a
// detached background task; its failure is a WARN and the uncompressed
// rotated file remains a valid artifact.
type Manager struct {
	policy Policy
	now    func() time.Time
	record func(Event)
	wg     sync.WaitGroup
}

// New validates the policy and returns a Manager bound to it.
func New(policy Policy, opts ...Option) (*Manager, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Policy returns the policy the manager was built with.
func (m *Manager) Policy() Policy { return m.policy }

// MaybeRotate checks the active file's size and rotates when it has reached
// the ceiling. The check is a single stat, so calling it after every log
// write is cheap, and a second call with no intervening writes short-circuits.
func (m *Manager) MaybeRotate(path string) (bool, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rotation: stat %s: %w", path, err)
	}
	if fi.Size() < m.policy.MaxSizeBytes {
		return false, nil
	}

	target := m.rotatedName(path)
	if err := os.Rename(path, target); err != nil {
		return false, fmt.Errorf("rotation: rename %s: %w", path, err)
	}

	// Recreate the active file with the original permissions before anything
	// else, so writers always have a destination.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return true, fmt.Errorf("rotation: recreate %s: %w", path, err)
	}
	f.Close()

	m.compressDetached(target)

	removed, err := retention.Prune(filepath.Dir(path), rotatedPrefix(path), m.policy.RetentionCount)
	if err != nil {
		slog.Warn("rotation: retention prune failed", "path", path, "error", err)
	}

	if m.record != nil {
		m.record(Event{Time: m.now(), File: path, RotatedTo: target, Removed: removed})
	}
	return true, nil
}

// CompressAged compresses rotated files that are past the policy's age
// threshold but still uncompressed, e.g. after a crash interrupted a
// background compression. Returns the number of files compressed.
func (m *Manager) CompressAged(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("rotation: read %s: %w", dir, err)
	}
	cutoff := m.now().AddDate(0, 0, -m.policy.AgeThresholdDays)

	c, err := pickCodec(m.policy.Codecs)
	if err != nil {
		return 0, err
	}

	compressed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || isArchive(name) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if _, err := c.compressFile(filepath.Join(dir, name)); err != nil {
			slog.Warn("rotation: aged compression failed", "file", name, "error", err)
			continue
		}
		compressed++
	}
	return compressed, nil
}

// Wait blocks until all detached compression tasks have finished. There is
// no cancellation: a task abandoned at process exit leaves a valid
// uncompressed rotated file behind.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// compressDetached compresses the rotated file in the background,
// fire-and-forget. Failure is non-fatal and logged asynchronously.
func (m *Manager) compressDetached(path string) {
	c, err := pickCodec(m.policy.Codecs)
	if err != nil {
		slog.Warn("rotation: no usable codec, keeping rotated file uncompressed",
			"file", path, "error", err)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := c.compressFile(path); err != nil {
			slog.Warn("rotation: background compression failed",
				"file", path, "error", err)
		}
	}()
}

// rotatedName builds the timestamp-suffixed archive name for path:
// activity.log -> activity-20060102-150405.log. A numeric suffix is added
// if two rotations land in the same second.
func (m *Manager) rotatedName(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	stamp := m.now().Format("20060102-150405")
	target := filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, stamp, ext))
	for i := 1; exists(target); i++ {
		target = filepath.Join(dir, fmt.Sprintf("%s-%s-%d%s", stem, stamp, i, ext))
	}
	return target
}

// rotatedPrefix is the artifact prefix shared by all rotated forms of path,
// compressed or not. It excludes the active file itself.
func rotatedPrefix(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-"
}

func isArchive(name string) bool {
	return strings.HasSuffix(name, ".zst") ||
		strings.HasSuffix(name, ".xz") ||
		strings.HasSuffix(name, ".gz") ||
		strings.HasSuffix(name, ".tmp")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
