// Package diagnostics captures point-in-time diagnostic bundles: a system
// state snapshot and a synthetic stack trace per error ID, with a "latest"
// pointer to the newest bundle of each kind.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultMaxFrames    = 10
	defaultContextLines = 5
	defaultCmdTimeout   = 10 * time.Second
	defaultTailLines    = 50
)

// Runner executes an external diagnostic command and returns its combined
// output. Injectable so snapshots are testable without a real system.
type Runner interface {
	Run(name string, args ...string) ([]byte, error)
}

type execRunner struct {
	timeout time.Duration
}

func (r execRunner) Run(name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// HostContext is the ambient process state a snapshot depends on, captured
// explicitly rather than read from globals mid-collection, so bundles are
// deterministic and testable.
type HostContext struct {
	Hostname   string
	PID        int
	WorkingDir string
	Environ    []string
}

// CaptureHostContext reads the current process's ambient state once.
func CaptureHostContext() HostContext {
	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()
	return HostContext{
		Hostname:   hostname,
		PID:        os.Getpid(),
		WorkingDir: wd,
		Environ:    os.Environ(),
	}
}

// Option configures a Collector.
type Option func(*Collector)

// WithRunner replaces the external-command runner (used in tests).
func WithRunner(r Runner) Option {
	return func(c *Collector) { c.runner = r }
}

// WithHostContext replaces the captured ambient state (used in tests).
func WithHostContext(h HostContext) Option {
	return func(c *Collector) { c.host = h }
}

// WithMaxFrames bounds the synthesized call stack depth. Default: 10.
func WithMaxFrames(n int) Option {
	return func(c *Collector) { c.maxFrames = n }
}

// WithContextLines sets how many source lines are shown before and after the
// failing line. Default: 5.
func WithContextLines(n int) Option {
	return func(c *Collector) { c.contextLines = n }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// Collector writes diagnostic bundles under a single directory. One state
// file and one trace file exist per error ID; the latest-state and
// latest-trace symlinks always point at the newest of each kind.
type Collector struct {
	dir          string
	runner       Runner
	host         HostContext
	maxFrames    int
	contextLines int
	now          func() time.Time
}

// New creates the bundle directory if needed and returns a Collector.
func New(dir string, opts ...Option) (*Collector, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("diagnostics: create %s: %w", dir, err)
	}
	c := &Collector{
		dir:          dir,
		runner:       execRunner{timeout: defaultCmdTimeout},
		host:         CaptureHostContext(),
		maxFrames:    defaultMaxFrames,
		contextLines: defaultContextLines,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the bundle directory.
func (c *Collector) Dir() string { return c.dir }

// section is one named piece of the system snapshot.
type section struct {
	title string
	name  string
	args  []string
	tail  int // keep only the last N lines when > 0
}

func baseSections() []section {
	return []section{
		{title: "IDENTITY", name: "uname", args: []string{"-a"}},
		{title: "RESOURCES", name: "free", args: []string{"-m"}},
		{title: "PROCESSES", name: "ps", args: []string{"aux"}},
		{title: "FILESYSTEM", name: "df", args: []string{"-h"}},
		{title: "MOUNTS", name: "mount", args: nil},
		{title: "NETWORK", name: "ss", args: []string{"-tulpn"}},
		{title: "RECENT MESSAGES", name: "dmesg", args: nil, tail: defaultTailLines},
	}
}

func emergencySections() []section {
	return []section{
		{title: "KERNEL MODULES", name: "lsmod", args: nil},
		{title: "PROCESS THREADS", name: "ps", args: []string{"-eLf"}},
	}
}

// CaptureSystemState gathers a system snapshot for errorID and returns the
// bundle file path. When emergency is true a deeper snapshot is taken. A
// section whose command is unavailable is replaced by an inline omission
// marker; the bundle remains valid for the sections that succeeded.
func (c *Collector) CaptureSystemState(errorID string, emergency bool) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SYSTEM STATE SNAPSHOT\n")
	fmt.Fprintf(&b, "error id:  %s\n", errorID)
	fmt.Fprintf(&b, "host:      %s\n", c.host.Hostname)
	fmt.Fprintf(&b, "pid:       %d\n", c.host.PID)
	fmt.Fprintf(&b, "cwd:       %s\n", c.host.WorkingDir)
	fmt.Fprintf(&b, "captured:  %s\n", c.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "emergency: %v\n", emergency)

	sections := baseSections()
	if emergency {
		sections = append(sections, emergencySections()...)
	}
	for _, s := range sections {
		b.WriteString(c.collectSection(s))
	}

	path := filepath.Join(c.dir, errorID+"-state.txt")
	if err := writeBundle(path, b.String()); err != nil {
		return "", err
	}
	if err := c.updateLatest("latest-state.txt", path); err != nil {
		return path, err
	}
	return path, nil
}

func (c *Collector) collectSection(s section) string {
	header := fmt.Sprintf("\n===== %s (%s) =====\n", s.title, s.name)
	out, err := c.runner.Run(s.name, s.args...)
	if err != nil {
		// Section omitted, bundle still valid: the marker stands in for it.
		return header + fmt.Sprintf("[section unavailable: %v]\n", err)
	}
	text := string(out)
	if s.tail > 0 {
		text = lastLines(text, s.tail)
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return header + text
}

// updateLatest repoints the named symlink at target. The pointer has
// at-most-one-target semantics: it is replaced, never appended.
func (c *Collector) updateLatest(linkName, target string) error {
	link := filepath.Join(c.dir, linkName)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diagnostics: replace %s: %w", link, err)
	}
	if err := os.Symlink(filepath.Base(target), link); err != nil {
		return fmt.Errorf("diagnostics: link %s: %w", link, err)
	}
	return nil
}

// writeBundle writes content to a temporary path first and renames it into
// place, so a crash mid-write never leaves a half-written bundle.
func writeBundle(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("diagnostics: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("diagnostics: write %s: %w", path, err)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n") + "\n"
}
