package alert

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/logkeep/internal/logkit"
)

// fakeProbes returns fixed headroom values.
type fakeProbes struct {
	memFree  uint64
	diskFree uint64
	memErr   error
	diskErr  error
}

func (f fakeProbes) FreeMemoryBytes() (uint64, error)     { return f.memFree, f.memErr }
func (f fakeProbes) FreeDiskBytes(string) (uint64, error) { return f.diskFree, f.diskErr }

const mb = 1024 * 1024

func testThresholds() Thresholds {
	return Thresholds{
		MinFreeMemoryBytes: 100 * mb,
		MinFreeDiskBytes:   500 * mb,
	}
}

func TestClassifyEmergencyOnLowMemory(t *testing.T) {
	// Free memory below threshold: emergency regardless of anything else.
	g := NewGate(testThresholds(), "/",
		WithProbes(fakeProbes{memFree: 50 * mb, diskFree: 10_000 * mb}))
	if got := g.Classify(); got != Emergency {
		t.Errorf("Classify = %v, want Emergency on low memory", got)
	}
}

func TestClassifyEmergencyOnLowDisk(t *testing.T) {
	g := NewGate(testThresholds(), "/",
		WithProbes(fakeProbes{memFree: 8_000 * mb, diskFree: 100 * mb}))
	if got := g.Classify(); got != Emergency {
		t.Errorf("Classify = %v, want Emergency on low disk", got)
	}
}

func TestClassifyNormalWithHeadroom(t *testing.T) {
	g := NewGate(testThresholds(), "/",
		WithProbes(fakeProbes{memFree: 8_000 * mb, diskFree: 10_000 * mb}))
	if got := g.Classify(); got != Normal {
		t.Errorf("Classify = %v, want Normal", got)
	}
}

func TestClassifyIsRepeatable(t *testing.T) {
	g := NewGate(testThresholds(), "/",
		WithProbes(fakeProbes{memFree: 50 * mb, diskFree: 10_000 * mb}))
	first := g.Classify()
	second := g.Classify()
	if first != second {
		t.Errorf("two classifications with no system change differ: %v, %v", first, second)
	}
}

func TestClassifyProbeFailureIsNotEmergency(t *testing.T) {
	g := NewGate(testThresholds(), "/",
		WithProbes(fakeProbes{
			memErr:   errors.New("meminfo unreadable"),
			diskFree: 10_000 * mb,
		}))
	if got := g.Classify(); got != Normal {
		t.Errorf("Classify = %v, want Normal when the probe itself fails", got)
	}
}

func TestClassifyZeroThresholdDisablesCheck(t *testing.T) {
	g := NewGate(Thresholds{}, "/",
		WithProbes(fakeProbes{memFree: 0, diskFree: 0}))
	if got := g.Classify(); got != Normal {
		t.Errorf("Classify = %v, want Normal with checks disabled", got)
	}
}

// recordingSender captures what would have been sent.
type recordingSender struct {
	subjects []string
	bodies   []string
}

func (r *recordingSender) Send(subject, body string) error {
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return nil
}

func TestShouldNotify(t *testing.T) {
	probes := fakeProbes{memFree: 8_000 * mb, diskFree: 10_000 * mb}

	withTransport := NewGate(testThresholds(), "/", WithProbes(probes), WithSender(&recordingSender{}))
	without := NewGate(testThresholds(), "/", WithProbes(probes))

	cases := []struct {
		name     string
		gate     *Gate
		severity Severity
		level    logkit.Level
		want     bool
	}{
		{"emergency always notifies", without, Emergency, logkit.LevelWarn, true},
		{"normal+error with transport", withTransport, Normal, logkit.LevelError, true},
		{"normal+fatal with transport", withTransport, Normal, logkit.LevelFatal, true},
		{"normal+warn with transport", withTransport, Normal, logkit.LevelWarn, false},
		{"normal+error without transport", without, Normal, logkit.LevelError, false},
	}
	for _, c := range cases {
		if got := c.gate.ShouldNotify(c.severity, c.level); got != c.want {
			t.Errorf("%s: ShouldNotify = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNotifyPayload(t *testing.T) {
	sender := &recordingSender{}
	g := NewGate(testThresholds(), "/", WithProbes(fakeProbes{}), WithSender(sender))

	p := Payload{
		ErrorID:   "cafebabe12345678",
		Host:      "web01",
		Time:      time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Command:   "pkg install nginx",
		ExitCode:  100,
		Severity:  Emergency,
		TracePath: "/var/lib/logkeep/diagnostics/cafebabe12345678-trace.txt",
		StatePath: "/var/lib/logkeep/diagnostics/cafebabe12345678-state.txt",
	}
	if err := g.Notify(p); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(sender.bodies) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sender.bodies))
	}
	body := sender.bodies[0]
	for _, want := range []string{
		"cafebabe12345678", "web01", "pkg install nginx",
		"exit code: 100", "severity:  emergency",
		"cafebabe12345678-trace.txt", "cafebabe12345678-state.txt",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("payload body missing %q:\n%s", want, body)
		}
	}
	if !strings.Contains(sender.subjects[0], "emergency") {
		t.Errorf("subject should carry severity: %q", sender.subjects[0])
	}
}

func TestNotifyWithoutTransport(t *testing.T) {
	g := NewGate(testThresholds(), "/", WithProbes(fakeProbes{}))
	if err := g.Notify(Payload{}); err == nil {
		t.Error("Notify without a transport should error")
	}
}
