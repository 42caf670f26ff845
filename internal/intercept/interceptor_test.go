package intercept

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/logkeep/internal/alert"
	"github.com/blackwell-systems/logkeep/internal/diagnostics"
	"github.com/blackwell-systems/logkeep/internal/logkit"
	"github.com/blackwell-systems/logkeep/internal/recovery"
	"github.com/blackwell-systems/logkeep/internal/store"
)

type fixedProbes struct {
	memFree  uint64
	diskFree uint64
}

func (f fixedProbes) FreeMemoryBytes() (uint64, error)     { return f.memFree, nil }
func (f fixedProbes) FreeDiskBytes(string) (uint64, error) { return f.diskFree, nil }

type noopRunner struct{}

func (noopRunner) Run(name string, args ...string) ([]byte, error) {
	return []byte(name + " ok\n"), nil
}

type recordingSender struct{ sent int }

func (r *recordingSender) Send(subject, body string) error {
	r.sent++
	return nil
}

const gb = 1024 * 1024 * 1024

type fixture struct {
	interceptor *Interceptor
	dispatcher  *recovery.Dispatcher
	store       *store.Store
	sender      *recordingSender
	diagDir     string
	errLogPath  string
}

// newFixture wires a full interceptor against fakes. memFree controls
// whether the gate classifies an emergency (threshold is 1 GiB).
func newFixture(t *testing.T, memFree uint64) *fixture {
	t.Helper()
	dir := t.TempDir()

	errLogPath := filepath.Join(dir, "error.log")
	errLog, err := logkit.New(errLogPath, logkit.WithMinLevel(logkit.LevelTrace))
	if err != nil {
		t.Fatalf("logkit.New: %v", err)
	}
	t.Cleanup(func() { errLog.Close() })

	diagDir := filepath.Join(dir, "diagnostics")
	collector, err := diagnostics.New(diagDir,
		diagnostics.WithRunner(noopRunner{}),
		diagnostics.WithHostContext(diagnostics.HostContext{Hostname: "web01", PID: 1}))
	if err != nil {
		t.Fatalf("diagnostics.New: %v", err)
	}

	sender := &recordingSender{}
	gate := alert.NewGate(
		alert.Thresholds{MinFreeMemoryBytes: gb, MinFreeDiskBytes: gb},
		dir,
		alert.WithProbes(fixedProbes{memFree: memFree, diskFree: 100 * gb}),
		alert.WithSender(sender))

	dispatcher := recovery.NewDispatcher()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	ic := New(errLog, collector, gate, dispatcher,
		WithStore(st),
		WithHostname("web01"),
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }))

	return &fixture{
		interceptor: ic,
		dispatcher:  dispatcher,
		store:       st,
		sender:      sender,
		diagDir:     diagDir,
		errLogPath:  errLogPath,
	}
}

func TestNewIDIsUniqueHex(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 32 {
			t.Fatalf("id length = %d, want 32 hex chars", len(id))
		}
		if strings.Trim(id, "0123456789abcdef") != "" {
			t.Fatalf("id %q is not lowercase hex", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestCaptureRecoversViaMatchingRule(t *testing.T) {
	fx := newFixture(t, 100*gb)

	fx.dispatcher.Register(recovery.Rule{
		Name:   "clean-package-cache",
		Match:  func(cmd string) bool { return strings.Contains(cmd, "pkg install") },
		Action: func() error { return nil },
	})

	ev := fx.interceptor.Capture("pkg install foo", 100, "setup.sh:12")

	if ev.Recovery != recovery.Recovered {
		t.Errorf("recovery = %v, want Recovered", ev.Recovery)
	}
	if ev.ExitCode != 100 {
		t.Errorf("exit code = %d, recovery must not mask the original failure", ev.ExitCode)
	}
	if ev.Severity != alert.Normal {
		t.Errorf("severity = %v, want Normal with plenty of headroom", ev.Severity)
	}

	// Exactly one event/bundle pair exists.
	n, err := fx.store.CountErrorEvents()
	if err != nil {
		t.Fatalf("CountErrorEvents: %v", err)
	}
	if n != 1 {
		t.Errorf("stored events = %d, want 1", n)
	}
	for _, p := range []string{ev.TracePath, ev.StatePath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("bundle file %s missing: %v", p, err)
		}
	}
	entries, _ := os.ReadDir(fx.diagDir)
	bundles := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ev.ID) {
			bundles++
		}
	}
	if bundles != 2 {
		t.Errorf("found %d bundle files for event, want trace+state", bundles)
	}
}

func TestCaptureUnrecoveredWithoutRule(t *testing.T) {
	fx := newFixture(t, 100*gb)
	ev := fx.interceptor.Capture("curl https://example.com", 7, "")
	if ev.Recovery != recovery.Unrecovered {
		t.Errorf("recovery = %v, want Unrecovered with no rules", ev.Recovery)
	}
}

func TestCaptureWritesErrorLogRecord(t *testing.T) {
	fx := newFixture(t, 100*gb)
	ev := fx.interceptor.Capture("mount /dev/sdb1 /mnt", 32, "setup.sh:77")

	data, err := os.ReadFile(fx.errLogPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(data)
	for _, want := range []string{"[ERROR]", ev.ID, "exit=32", "mount /dev/sdb1", "setup.sh:77"} {
		if !strings.Contains(text, want) {
			t.Errorf("error log missing %q:\n%s", want, text)
		}
	}
}

func TestCaptureEmergencyNotifies(t *testing.T) {
	// Free memory below threshold: emergency, and emergencies always notify.
	fx := newFixture(t, gb/2)
	ev := fx.interceptor.Capture("pkg install foo", 1, "")

	if ev.Severity != alert.Emergency {
		t.Fatalf("severity = %v, want Emergency", ev.Severity)
	}
	if !ev.Notified || fx.sender.sent != 1 {
		t.Errorf("notified=%v sent=%d, want one notification", ev.Notified, fx.sender.sent)
	}

	// Emergency snapshots carry the deeper sections.
	data, _ := os.ReadFile(ev.StatePath)
	if !strings.Contains(string(data), "KERNEL MODULES") {
		t.Error("emergency state snapshot missing deep sections")
	}

	row, err := fx.store.GetErrorEvent(ev.ID)
	if err != nil {
		t.Fatalf("GetErrorEvent: %v", err)
	}
	if row.Severity != "emergency" || !row.Notified {
		t.Errorf("stored row = %+v, want emergency/notified", row)
	}
}

func TestCaptureNormalSeverityNotifiesWithTransport(t *testing.T) {
	// Normal severity + ERROR level + configured transport also notifies.
	fx := newFixture(t, 100*gb)
	ev := fx.interceptor.Capture("chmod 600 /etc/ssh/key", 1, "")
	if ev.Severity != alert.Normal {
		t.Fatalf("severity = %v, want Normal", ev.Severity)
	}
	if fx.sender.sent != 1 {
		t.Errorf("sent = %d, want 1 (transport configured, level ERROR)", fx.sender.sent)
	}
}

func TestEachCaptureGetsDistinctEvent(t *testing.T) {
	fx := newFixture(t, 100*gb)
	a := fx.interceptor.Capture("pkg install a", 1, "")
	b := fx.interceptor.Capture("pkg install b", 2, "")

	if a.ID == b.ID {
		t.Error("two captures must not share an error ID")
	}
	n, _ := fx.store.CountErrorEvents()
	if n != 2 {
		t.Errorf("stored events = %d, want 2", n)
	}
}
