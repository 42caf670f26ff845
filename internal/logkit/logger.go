// Package logkit implements the leveled, rotating file logger at the core of
// logkeep. A Logger owns one active log file; writes are append-only and a
// rotation check (a single stat) runs after every write.
package logkit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ErrUnknownLevel is returned by ParseLevel and SetLevel for level names
// that are not part of the TRACE..FATAL ladder.
var ErrUnknownLevel = errors.New("unknown log level")

// Rotator decides whether the active file needs rotating and performs the
// rotation. Implemented by rotation.Manager.
type Rotator interface {
	// MaybeRotate returns true when the file at path was renamed away and
	// a fresh active file was created in its place.
	MaybeRotate(path string) (bool, error)
}

// Option configures a Logger.
type Option func(*Logger)

// WithMinLevel sets the minimum level written to the file. Default: INFO.
func WithMinLevel(l Level) Option {
	return func(lg *Logger) { lg.min = l }
}

// WithConsole mirrors records at or above min to w (typically os.Stderr).
func WithConsole(w io.Writer, min Level) Option {
	return func(lg *Logger) {
		lg.console = w
		lg.consoleMin = min
	}
}

// WithRotation attaches a rotation check that runs after every write.
func WithRotation(r Rotator) Option {
	return func(lg *Logger) { lg.rot = r }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(lg *Logger) { lg.now = now }
}

// Logger is a level-filtered log sink backed by a single append-only file.
// A write failure is reported to stderr and swallowed: logging must never
// crash the calling operation. Safe for concurrent use, though the engine
// assumes one logical writer per file.
type Logger struct {
	mu         sync.Mutex
	path       string
	f          *os.File
	min        Level
	console    io.Writer
	consoleMin Level
	rot        Rotator
	pid        int
	now        func() time.Time
}

// New opens (or creates) the log file at path.
func New(path string, opts ...Option) (*Logger, error) {
	lg := &Logger{
		path: path,
		min:  LevelInfo,
		pid:  os.Getpid(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(lg)
	}
	if err := lg.open(); err != nil {
		return nil, err
	}
	return lg, nil
}

// Log writes one record. origin is the call site (file:line) and may be empty.
func (lg *Logger) Log(level Level, origin, message string) {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	if level < lg.min {
		return
	}

	rec := Record{
		Time:    lg.now(),
		Level:   level,
		PID:     lg.pid,
		Origin:  origin,
		Message: message,
	}
	line := rec.Format()

	if _, err := fmt.Fprintln(lg.f, line); err != nil {
		fmt.Fprintf(os.Stderr, "logkit: write %s: %v\n", lg.path, err)
	}
	if lg.console != nil && level >= lg.consoleMin {
		fmt.Fprintln(lg.console, line)
	}

	lg.checkRotate()
}

// Logf is Log with fmt formatting and no origin.
func (lg *Logger) Logf(level Level, format string, args ...any) {
	lg.Log(level, "", fmt.Sprintf(format, args...))
}

// Level helpers for the common cases.
func (lg *Logger) Tracef(format string, args ...any) { lg.Logf(LevelTrace, format, args...) }
func (lg *Logger) Debugf(format string, args ...any) { lg.Logf(LevelDebug, format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.Logf(LevelInfo, format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.Logf(LevelWarn, format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.Logf(LevelError, format, args...) }

// SetLevel changes the minimum level at runtime. An unknown name returns
// ErrUnknownLevel and leaves the previous level unchanged.
func (lg *Logger) SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	lg.mu.Lock()
	lg.min = level
	lg.mu.Unlock()
	return nil
}

// MinLevel returns the current minimum level.
func (lg *Logger) MinLevel() Level {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return lg.min
}

// Path returns the active log file path.
func (lg *Logger) Path() string { return lg.path }

// CheckRotate runs the rotation check immediately, outside the normal
// after-write hook. The error interceptor calls this on the error log before
// writing so a new error is never split across a rotation boundary.
func (lg *Logger) CheckRotate() {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.checkRotate()
}

// checkRotate must be called with the lock held. Rotation failures are
// reported to stderr and swallowed; logging always continues.
func (lg *Logger) checkRotate() {
	if lg.rot == nil {
		return
	}
	rotated, err := lg.rot.MaybeRotate(lg.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logkit: rotate %s: %v\n", lg.path, err)
	}
	if rotated {
		// The manager renamed our inode away; switch the handle over even
		// when the pass errored partway, since open() recreates a missing
		// active file. Staying on the old handle would keep appending to
		// the renamed archive.
		lg.f.Close()
		if err := lg.open(); err != nil {
			fmt.Fprintf(os.Stderr, "logkit: reopen %s: %v\n", lg.path, err)
		}
	}
}

// Close closes the active file.
func (lg *Logger) Close() error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.f == nil {
		return nil
	}
	err := lg.f.Close()
	lg.f = nil
	return err
}

func (lg *Logger) open() error {
	f, err := os.OpenFile(lg.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logkit: open %s: %w", lg.path, err)
	}
	lg.f = f
	return nil
}
