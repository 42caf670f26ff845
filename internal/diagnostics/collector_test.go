package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner serves canned output per command and fails commands listed in
// unavailable.
type fakeRunner struct {
	output      map[string]string
	unavailable map[string]bool
	calls       []string
}

func (f *fakeRunner) Run(name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name)
	if f.unavailable[name] {
		return nil, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	if out, ok := f.output[name]; ok {
		return []byte(out), nil
	}
	return []byte(name + " output\n"), nil
}

func testCollector(t *testing.T, runner Runner) *Collector {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "diagnostics"),
		WithRunner(runner),
		WithHostContext(HostContext{
			Hostname:   "web01",
			PID:        4242,
			WorkingDir: "/srv/setup",
			Environ:    []string{"PATH=/usr/bin", "HOME=/root", "LANG=C"},
		}),
		WithClock(func() time.Time {
			return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCaptureSystemState(t *testing.T) {
	runner := &fakeRunner{output: map[string]string{
		"uname": "Linux web01 6.1.0 x86_64\n",
		"free":  "Mem: 16000 8000 8000\n",
	}}
	c := testCollector(t, runner)

	path, err := c.CaptureSystemState("deadbeef01", false)
	if err != nil {
		t.Fatalf("CaptureSystemState: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"error id:  deadbeef01",
		"host:      web01",
		"cwd:       /srv/setup",
		"IDENTITY", "Linux web01",
		"RESOURCES", "PROCESSES", "FILESYSTEM", "NETWORK", "RECENT MESSAGES",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("bundle missing %q", want)
		}
	}
	if strings.Contains(text, "KERNEL MODULES") {
		t.Error("non-emergency snapshot should not include deep sections")
	}
}

func TestCaptureSystemStateEmergencySections(t *testing.T) {
	runner := &fakeRunner{}
	c := testCollector(t, runner)

	path, err := c.CaptureSystemState("deadbeef02", true)
	if err != nil {
		t.Fatalf("CaptureSystemState: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "KERNEL MODULES") ||
		!strings.Contains(string(data), "PROCESS THREADS") {
		t.Error("emergency snapshot missing deep sections")
	}
}

func TestSectionOmissionMarker(t *testing.T) {
	// One collection command is unavailable: the bundle must still be
	// written, with every other section present and an inline marker for
	// the failed one.
	runner := &fakeRunner{unavailable: map[string]bool{"ss": true}}
	c := testCollector(t, runner)

	path, err := c.CaptureSystemState("deadbeef03", false)
	if err != nil {
		t.Fatalf("CaptureSystemState: %v", err)
	}
	data, _ := os.ReadFile(path)
	text := string(data)

	if !strings.Contains(text, "NETWORK") {
		t.Error("failed section header should still appear")
	}
	if !strings.Contains(text, "[section unavailable:") {
		t.Error("failed section should carry an omission marker")
	}
	for _, want := range []string{"IDENTITY", "RESOURCES", "PROCESSES", "FILESYSTEM", "RECENT MESSAGES"} {
		if !strings.Contains(text, want) {
			t.Errorf("surviving section %q missing", want)
		}
	}
}

func TestLatestPointerTracksNewestBundle(t *testing.T) {
	runner := &fakeRunner{}
	c := testCollector(t, runner)

	if _, err := c.CaptureSystemState("aaaa", false); err != nil {
		t.Fatalf("first capture: %v", err)
	}
	second, err := c.CaptureSystemState("bbbb", false)
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}

	link := filepath.Join(c.Dir(), "latest-state.txt")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != filepath.Base(second) {
		t.Errorf("latest-state -> %s, want %s", target, filepath.Base(second))
	}
}

func TestCaptureStackTrace(t *testing.T) {
	// Write a fake source file so the context window has something to show.
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "setup.sh")
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, fmt.Sprintf("step %d", i))
	}
	os.WriteFile(src, []byte(strings.Join(lines, "\n")), 0644)

	c := testCollector(t, &fakeRunner{})
	origin := src + ":10"

	path, err := c.CaptureStackTrace("deadbeef04", origin, "pkg install foo", 1)
	if err != nil {
		t.Fatalf("CaptureStackTrace: %v", err)
	}
	data, _ := os.ReadFile(path)
	text := string(data)

	if !strings.Contains(text, "command:  pkg install foo") || !strings.Contains(text, "exit:     1") {
		t.Errorf("trace header incomplete:\n%s", text)
	}
	if !strings.Contains(text, "CALL STACK") || !strings.Contains(text, "#0 ") {
		t.Error("trace missing synthesized call stack")
	}
	if !strings.Contains(text, ">   10  step 10") {
		t.Errorf("failing line not marked in context window:\n%s", text)
	}
	if !strings.Contains(text, "step 5") || !strings.Contains(text, "step 15") {
		t.Error("context window should span 5 lines either side")
	}
	if strings.Contains(text, "step 4\n") || strings.Contains(text, "step 16") {
		t.Error("context window wider than configured")
	}

	// Environment dump is sorted by name.
	envIdx := strings.Index(text, "ENVIRONMENT")
	envText := text[envIdx:]
	home := strings.Index(envText, "HOME=")
	lang := strings.Index(envText, "LANG=")
	pathVar := strings.Index(envText, "PATH=")
	if !(home < lang && lang < pathVar) {
		t.Error("environment dump not sorted")
	}

	link := filepath.Join(c.Dir(), "latest-trace.txt")
	if target, err := os.Readlink(link); err != nil || target != filepath.Base(path) {
		t.Errorf("latest-trace -> %s (%v), want %s", target, err, filepath.Base(path))
	}
}

func TestCaptureStackTraceWithoutOrigin(t *testing.T) {
	c := testCollector(t, &fakeRunner{})
	path, err := c.CaptureStackTrace("deadbeef05", "", "mount /dev/sdb1", 32)
	if err != nil {
		t.Fatalf("CaptureStackTrace: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "[no origin site recorded]") {
		t.Error("missing origin should yield an omission marker")
	}
}

func TestMaxFramesBoundsStack(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "d"),
		WithRunner(&fakeRunner{}),
		WithHostContext(HostContext{}),
		WithMaxFrames(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := deepCapture(c, 12)
	if err != nil {
		t.Fatalf("CaptureStackTrace: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "#2 ") {
		t.Error("call stack deeper than configured maximum")
	}
}

// deepCapture recurses to build a deep call chain before capturing.
func deepCapture(c *Collector, depth int) (string, error) {
	if depth > 0 {
		return deepCapture(c, depth-1)
	}
	return c.CaptureStackTrace("deadbeef06", "", "deep", 1)
}
