// Package alert decides whether a failure warrants an out-of-band
// notification. Severity is classified from live resource headroom at the
// moment of failure: low free memory or disk makes any error an emergency.
package alert

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blackwell-systems/logkeep/internal/logkit"
)

// Severity of an error event.
type Severity int

const (
	Normal Severity = iota
	Emergency
)

func (s Severity) String() string {
	if s == Emergency {
		return "emergency"
	}
	return "normal"
}

// Probes reads live resource indicators. Injectable for tests.
type Probes interface {
	FreeMemoryBytes() (uint64, error)
	FreeDiskBytes(path string) (uint64, error)
}

// Thresholds are the emergency floor values. A zero threshold disables that
// check.
type Thresholds struct {
	MinFreeMemoryBytes uint64
	MinFreeDiskBytes   uint64
}

// Sender delivers a rendered notification. The transport (local mail, a
// webhook relay) is an external collaborator; the gate only decides whether
// and what to send.
type Sender interface {
	Send(subject, body string) error
}

// Gate classifies severity and gates notifications.
type Gate struct {
	thresholds Thresholds
	probes     Probes
	diskPath   string
	sender     Sender
}

// Option configures a Gate.
type Option func(*Gate)

// WithProbes replaces the live resource probes (used in tests).
func WithProbes(p Probes) Option {
	return func(g *Gate) { g.probes = p }
}

// WithSender attaches a notification transport. Without one, only emergency
// severity can trigger a notification decision and Notify reports the
// missing transport.
func WithSender(s Sender) Option {
	return func(g *Gate) { g.sender = s }
}

// NewGate builds a gate. diskPath is the filesystem whose headroom is
// checked, normally the engine's data directory.
func NewGate(thresholds Thresholds, diskPath string, opts ...Option) *Gate {
	g := &Gate{
		thresholds: thresholds,
		probes:     systemProbes{},
		diskPath:   diskPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Classify reads the live indicators and returns the severity. It is
// stateless and side-effect-free: two calls with no intervening system
// change yield the same result. A probe failure is logged and treated as
// headroom unknown, not as an emergency.
func (g *Gate) Classify() Severity {
	if g.thresholds.MinFreeMemoryBytes > 0 {
		free, err := g.probes.FreeMemoryBytes()
		if err != nil {
			slog.Warn("alert: memory probe failed", "error", err)
		} else if free < g.thresholds.MinFreeMemoryBytes {
			return Emergency
		}
	}
	if g.thresholds.MinFreeDiskBytes > 0 {
		free, err := g.probes.FreeDiskBytes(g.diskPath)
		if err != nil {
			slog.Warn("alert: disk probe failed", "path", g.diskPath, "error", err)
		} else if free < g.thresholds.MinFreeDiskBytes {
			return Emergency
		}
	}
	return Normal
}

// ShouldNotify reports whether a failure at the given severity and log level
// warrants a notification. Emergencies always notify; normal severity
// notifies only when a transport is configured and the level is ERROR or
// worse.
func (g *Gate) ShouldNotify(severity Severity, level logkit.Level) bool {
	if severity == Emergency {
		return true
	}
	return g.sender != nil && level >= logkit.LevelError
}

// Payload is the plain-text notification content.
type Payload struct {
	ErrorID   string
	Host      string
	Time      time.Time
	Command   string
	ExitCode  int
	Severity  Severity
	TracePath string
	StatePath string
}

// Render produces the notification body. Raw diagnostic detail stays in the
// referenced bundle files; the body is a pointer to them.
func (p Payload) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "logkeep error report\n\n")
	fmt.Fprintf(&b, "error id:  %s\n", p.ErrorID)
	fmt.Fprintf(&b, "host:      %s\n", p.Host)
	fmt.Fprintf(&b, "time:      %s\n", p.Time.Format(time.RFC3339))
	fmt.Fprintf(&b, "command:   %s\n", p.Command)
	fmt.Fprintf(&b, "exit code: %d\n", p.ExitCode)
	fmt.Fprintf(&b, "severity:  %s\n", p.Severity)
	fmt.Fprintf(&b, "\nbundles:\n")
	fmt.Fprintf(&b, "  trace: %s\n", p.TracePath)
	fmt.Fprintf(&b, "  state: %s\n", p.StatePath)
	return b.String()
}

// Subject builds the one-line notification subject.
func (p Payload) Subject() string {
	return fmt.Sprintf("[logkeep] %s failure %s on %s", p.Severity, p.ErrorID, p.Host)
}

// Notify sends the payload through the configured transport.
func (g *Gate) Notify(p Payload) error {
	if g.sender == nil {
		return fmt.Errorf("alert: no notification transport configured")
	}
	return g.sender.Send(p.Subject(), p.Render())
}
