package watcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

var errGarbledPID = errors.New("garbled PID file")

// readPID parses the owner PID out of a daemon PID file.
func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w %s: %v", errGarbledPID, pidFile, err)
	}
	return pid, nil
}

// StartDaemon re-executes the current binary as a detached maintenance
// daemon, records its PID in pidFile, and redirects its output to logFile.
func StartDaemon(pidFile, logFile string) error {
	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", pidFile)
	}

	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open daemon log %s: %w", logFile, err)
	}
	defer logF.Close()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve own executable: %w", err)
	}

	child := exec.Command(self, "watch", "--daemon-child")
	child.Stdout = logF
	child.Stderr = logF
	child.Stdin = nil
	// New session, detached from the controlling terminal.
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	pid := child.Process.Pid
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		child.Process.Kill()
		return fmt.Errorf("failed to write PID file %s: %w", pidFile, err)
	}

	if err := child.Process.Release(); err != nil {
		return fmt.Errorf("failed to detach daemon: %w", err)
	}
	return nil
}

// RunDaemon runs the watcher until SIGTERM or SIGINT arrives, then shuts it
// down and removes the PID file. Called in the daemon child, where stdout
// and stderr point at the watch log.
func (w *Watcher) RunDaemon(pidFile string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	sig := <-sigCh
	fmt.Fprintf(os.Stderr, "received signal %v, shutting down...\n", sig)

	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}

	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", pidFile, err)
	}
	return nil
}

// StopDaemon asks a running daemon to shut down with SIGTERM. The daemon
// removes its own PID file on the way out.
func StopDaemon(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon not running (PID file not found)")
		}
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}

// IsDaemonRunning reports whether the PID file names a live process.
// A missing, garbled, or stale PID file means not running; stale files are
// removed so the next start does not trip over them.
func IsDaemonRunning(pidFile string) (bool, error) {
	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		if errors.Is(err, errGarbledPID) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read PID file: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}

	// Signal 0 probes for existence without delivering anything.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidFile)
		return false, nil
	}
	return true, nil
}
