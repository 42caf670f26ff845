// Package intercept owns the failure path: each intercepted failure gets a
// unique error ID, an ERROR record in the error log, a diagnostic bundle, a
// severity classification, at most one recovery attempt, and possibly a
// notification. The original exit code always propagates unchanged.
package intercept

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/logkeep/internal/alert"
	"github.com/blackwell-systems/logkeep/internal/diagnostics"
	"github.com/blackwell-systems/logkeep/internal/logkit"
	"github.com/blackwell-systems/logkeep/internal/recovery"
	"github.com/blackwell-systems/logkeep/internal/store"
)

// Event is one intercepted failure. Created once, immutable afterwards;
// referenced by the diagnostic bundle and the notification payload.
type Event struct {
	ID        string
	Time      time.Time
	Origin    string
	Command   string
	ExitCode  int
	Severity  alert.Severity
	Recovery  recovery.Outcome
	TracePath string
	StatePath string
	Notified  bool
}

// NewID returns a fresh error identifier: 16 bytes of secure randomness,
// hex-encoded. Collision probability is negligible.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithStore persists completed events to the audit store.
func WithStore(s *store.Store) Option {
	return func(i *Interceptor) { i.store = s }
}

// WithHostname overrides the host name in notification payloads.
func WithHostname(h string) Option {
	return func(i *Interceptor) { i.hostname = h }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) { i.now = now }
}

// Interceptor wraps fallible operations. Collaborators declare the failure
// (description, exit code, origin) and the interceptor owns diagnostics,
// recovery dispatch, and notification; they do not build their own error
// paths beyond registering recovery rules.
type Interceptor struct {
	errLog     *logkit.Logger
	collector  *diagnostics.Collector
	gate       *alert.Gate
	dispatcher *recovery.Dispatcher
	store      *store.Store
	hostname   string
	now        func() time.Time
}

// New wires an interceptor. errLog is the error-specific log, separate from
// the general activity log.
func New(errLog *logkit.Logger, collector *diagnostics.Collector, gate *alert.Gate,
	dispatcher *recovery.Dispatcher, opts ...Option) *Interceptor {
	hostname, _ := os.Hostname()
	i := &Interceptor{
		errLog:     errLog,
		collector:  collector,
		gate:       gate,
		dispatcher: dispatcher,
		hostname:   hostname,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Capture processes one failure. Every call produces exactly one Event and
// one diagnostic bundle; failures inside the capture pipeline itself are
// logged as WARN and never re-intercepted. The returned event carries the
// original exit code: recovery never masks the originating failure.
func (i *Interceptor) Capture(command string, exitCode int, origin string) *Event {
	ev := &Event{
		ID:       NewID(),
		Time:     i.now(),
		Origin:   origin,
		Command:  command,
		ExitCode: exitCode,
	}

	// Rotate the error log before writing, so the new error is never split
	// across a rotation boundary.
	i.errLog.CheckRotate()
	i.errLog.Log(logkit.LevelError, origin,
		fmt.Sprintf("error_id=%s exit=%d command=%q", ev.ID, exitCode, command))

	tracePath, err := i.collector.CaptureStackTrace(ev.ID, origin, command, exitCode)
	if err != nil {
		i.errLog.Warnf("error_id=%s stack trace capture failed: %v", ev.ID, err)
	}
	ev.TracePath = tracePath

	// Classification is stateless, so taking it before the state capture
	// lets the emergency flag select the deeper snapshot.
	ev.Severity = i.gate.Classify()

	statePath, err := i.collector.CaptureSystemState(ev.ID, ev.Severity == alert.Emergency)
	if err != nil {
		i.errLog.Warnf("error_id=%s system state capture failed: %v", ev.ID, err)
	}
	ev.StatePath = statePath

	ev.Recovery = i.dispatcher.Attempt(ev.ID, command)
	i.errLog.Infof("error_id=%s recovery=%s", ev.ID, ev.Recovery)

	if i.gate.ShouldNotify(ev.Severity, logkit.LevelError) {
		payload := alert.Payload{
			ErrorID:   ev.ID,
			Host:      i.hostname,
			Time:      ev.Time,
			Command:   command,
			ExitCode:  exitCode,
			Severity:  ev.Severity,
			TracePath: ev.TracePath,
			StatePath: ev.StatePath,
		}
		if err := i.gate.Notify(payload); err != nil {
			i.errLog.Warnf("error_id=%s notification failed: %v", ev.ID, err)
		} else {
			ev.Notified = true
		}
	}

	i.persist(ev)
	return ev
}

// persist writes the completed event to the audit store, when one is wired.
func (i *Interceptor) persist(ev *Event) {
	if i.store == nil {
		return
	}
	row := &store.ErrorEvent{
		ErrorID:   ev.ID,
		Timestamp: ev.Time,
		Origin:    ev.Origin,
		Command:   ev.Command,
		ExitCode:  ev.ExitCode,
		Severity:  ev.Severity.String(),
		Recovery:  ev.Recovery.String(),
		TracePath: ev.TracePath,
		StatePath: ev.StatePath,
		Notified:  ev.Notified,
	}
	if err := i.store.InsertErrorEvent(row); err != nil {
		i.errLog.Warnf("error_id=%s audit store insert failed: %v", ev.ID, err)
	}
}
