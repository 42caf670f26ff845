package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CaptureStackTrace synthesizes a stack-trace bundle for errorID: the call
// stack that led to the capture (bounded by the configured frame maximum), a
// source-context window around the failing origin with the failing line
// marked, and a sorted environment dump. Returns the trace file path.
func (c *Collector) CaptureStackTrace(errorID, origin, command string, exitCode int) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "STACK TRACE\n")
	fmt.Fprintf(&b, "error id: %s\n", errorID)
	fmt.Fprintf(&b, "origin:   %s\n", origin)
	fmt.Fprintf(&b, "command:  %s\n", command)
	fmt.Fprintf(&b, "exit:     %d\n", exitCode)
	fmt.Fprintf(&b, "captured: %s\n", c.now().Format(time.RFC3339))

	b.WriteString("\n===== CALL STACK =====\n")
	b.WriteString(c.callStack())

	b.WriteString("\n===== SOURCE CONTEXT =====\n")
	b.WriteString(c.sourceContext(origin))

	b.WriteString("\n===== ENVIRONMENT =====\n")
	b.WriteString(c.envDump())

	path := filepath.Join(c.dir, errorID+"-trace.txt")
	if err := writeBundle(path, b.String()); err != nil {
		return "", err
	}
	if err := c.updateLatest("latest-trace.txt", path); err != nil {
		return path, err
	}
	return path, nil
}

// callStack lists the calling frames, newest first, skipping the collector's
// own frames. Depth is bounded so deep call chains stay readable.
func (c *Collector) callStack() string {
	pcs := make([]uintptr, c.maxFrames)
	// Skip runtime.Callers, callStack, and CaptureStackTrace itself.
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return "[no frames available]\n"
	}
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for i := 0; ; i++ {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "  #%d %s (%s:%d)\n", i, frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

// sourceContext renders a window of lines around the failing origin
// ("file:line"), marking the failing line. A missing or unreadable source
// file yields an omission marker rather than an error.
func (c *Collector) sourceContext(origin string) string {
	file, line, ok := splitOrigin(origin)
	if !ok {
		return "[no origin site recorded]\n"
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Sprintf("[source unavailable: %v]\n", err)
	}

	lines := strings.Split(string(data), "\n")
	if line < 1 || line > len(lines) {
		return fmt.Sprintf("[line %d out of range for %s]\n", line, file)
	}

	start := line - c.contextLines
	if start < 1 {
		start = 1
	}
	end := line + c.contextLines
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		marker := " "
		if i == line {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %4d  %s\n", marker, i, lines[i-1])
	}
	return b.String()
}

// envDump renders the captured environment sorted by variable name.
func (c *Collector) envDump() string {
	env := make([]string, len(c.host.Environ))
	copy(env, c.host.Environ)
	sort.Strings(env)
	if len(env) == 0 {
		return "[no environment captured]\n"
	}
	return strings.Join(env, "\n") + "\n"
}

// splitOrigin parses "file:line". The file part may itself contain colons
// only on exotic paths, so the split is on the last colon.
func splitOrigin(origin string) (string, int, bool) {
	idx := strings.LastIndex(origin, ":")
	if idx <= 0 || idx == len(origin)-1 {
		return "", 0, false
	}
	line, err := strconv.Atoi(origin[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return origin[:idx], line, true
}
