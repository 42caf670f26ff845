package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/logkeep/internal/output"
	"github.com/blackwell-systems/logkeep/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchSweepEvery  time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep managed logs rotated via filesystem events",
		Long: `Watches the managed log directory for writes from collaborator scripts
and rotates any log that reaches its size ceiling. A periodic sweep also
compresses rotated files that crossed the age threshold uncompressed and
prunes the backups directory to the retention window.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  logkeep watch

  # Run as background daemon
  logkeep watch --daemon

  # Stop running daemon
  logkeep watch --stop`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: <data-dir>/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: <data-dir>/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().DurationVar(&watchSweepEvery, "sweep-every", 10*time.Minute, "maintenance sweep interval")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if watchPIDFile == "" {
		watchPIDFile = cfg.PIDFile()
	}
	if watchLogFile == "" {
		watchLogFile = cfg.WatchLog()
	}

	if watchStop {
		return stopWatchDaemon()
	}

	if err := ensureDataDirs(cfg); err != nil {
		return err
	}

	// Daemon mode forks before building the watcher; the child builds its own.
	if watchDaemon {
		return startWatchDaemon()
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr, err := newManager(cfg, st)
	if err != nil {
		return err
	}

	w, err := watcher.New(mgr, []string{cfg.ActivityLog(), cfg.ErrorLog()}, watcher.Options{
		SweepInterval: watchSweepEvery,
		BackupsDir:    cfg.BackupsDir(),
		BackupsKeep:   cfg.Rotation.Retention,
		LockPath:      cfg.LockFile(),
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if watchDaemonChild {
		// Daemon child: stdout/stderr are redirected to the watch log.
		return w.RunDaemon(watchPIDFile)
	}

	return runWatchForeground(w)
}

func stopWatchDaemon() error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon() error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", watchPIDFile)
	}

	spinner := output.NewSpinner("Starting daemon...")
	spinner.Start()
	if err := watcher.StartDaemon(watchPIDFile, watchLogFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nLog maintenance daemon started\n")
	fmt.Printf("  PID file: %s\n", watchPIDFile)
	fmt.Printf("  Log file: %s\n", watchLogFile)
	fmt.Printf("\nTo stop: logkeep watch --stop\n")

	return nil
}

func runWatchForeground(w *watcher.Watcher) error {
	fmt.Println("Starting log maintenance (press Ctrl+C to stop)...")
	fmt.Println()

	spinner := output.NewSpinner("Starting watcher...")
	spinner.Start()
	if err := w.Start(); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	spinner.StopWithMessage("✓ Watcher started")

	fmt.Println()
	fmt.Println("Watching managed logs for rotation. Press Ctrl+C to stop.")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	fmt.Printf("\nReceived signal %v, shutting down...\n", sig)

	spinner = output.NewSpinner("Stopping watcher...")
	spinner.Start()
	if err := w.Stop(); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	spinner.StopWithMessage("✓ Watcher stopped")

	fmt.Println("Log maintenance stopped")

	return nil
}
