// Package lockfile provides an advisory lock file for long-running
// maintenance passes (retention pruning, the watch daemon) so two passes do
// not run concurrently. The lock records its owner PID; a lock whose owner
// is no longer alive is stale and gets reclaimed with a warning.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("lock held by another process")

// Lock is an acquired advisory lock.
type Lock struct {
	path string
}

// Acquire takes the lock at path for the current process. If the lock file
// exists but its recorded owner is dead, the stale lock is reclaimed.
func Acquire(path string) (*Lock, error) {
	return acquire(path, os.Getpid(), processAlive)
}

// acquire is the testable core; alive reports whether a PID is running.
func acquire(path string, pid int, alive func(int) bool) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", pid)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("lockfile: write %s: %w", path, errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("lockfile: create %s: %w", path, err)
		}

		owner, rerr := readOwner(path)
		if rerr != nil {
			// Unreadable or garbled lock file: treat as stale.
			slog.Warn("lockfile: unreadable lock treated as stale", "path", path, "error", rerr)
		} else if alive(owner) {
			return nil, fmt.Errorf("%w: pid %d (%s)", ErrLocked, owner, path)
		} else {
			slog.Warn("lockfile: reclaiming stale lock", "path", path, "owner", owner)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("lockfile: reclaim %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lockfile: release %s: %w", l.path, err)
	}
	return nil
}

func readOwner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("bad pid %q: %w", strings.TrimSpace(string(data)), err)
	}
	return pid, nil
}

// processAlive checks liveness with signal 0, which probes without delivering.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}
