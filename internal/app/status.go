package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/logkeep/internal/output"
	"github.com/blackwell-systems/logkeep/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status: logs, rotation history, daemon, alerts",
	Long: `Shows the current state of the engine: managed log sizes against the
rotation ceiling, the last rotation per file, intercepted error counts,
watch daemon liveness, and the live alert severity from memory and disk
probes.`,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("logkeep status")
	fmt.Println()
	fmt.Printf("Data directory: %s\n", cfg.DataDir)
	fmt.Println()

	// Managed logs against the rotation ceiling
	fmt.Printf("Logs (ceiling %s, keep %d):\n",
		output.FormatSize(cfg.Rotation.MaxSize), cfg.Rotation.Retention)
	for _, path := range []string{cfg.ActivityLog(), cfg.ErrorLog()} {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			fmt.Printf("  %-40s (not created yet)\n", path)
			continue
		} else if err != nil {
			fmt.Printf("  %-40s (unreadable: %v)\n", path, err)
			continue
		}
		fmt.Printf("  %-40s %s\n", path, output.FormatSize(info.Size()))
	}
	fmt.Println()

	// Audit history, when the database exists
	if _, err := os.Stat(cfg.DBPath()); err == nil {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.CountErrorEvents()
		if err != nil {
			return err
		}
		fmt.Printf("Intercepted errors: %d\n", n)

		for _, path := range []string{cfg.ActivityLog(), cfg.ErrorLog()} {
			last, err := st.LastRotation(path)
			if err != nil {
				return err
			}
			if last != nil {
				fmt.Printf("Last rotation of %s: %s → %s\n",
					last.File, last.Timestamp.Format("2006-01-02 15:04:05"), last.RotatedTo)
			}
		}
	} else {
		fmt.Println("Intercepted errors: none recorded (no database yet)")
	}
	fmt.Println()

	// Daemon liveness
	running, err := watcher.IsDaemonRunning(cfg.PIDFile())
	if err != nil {
		fmt.Printf("Watch daemon: unknown (%v)\n", err)
	} else if running {
		fmt.Println("Watch daemon: running")
	} else {
		fmt.Println("Watch daemon: not running (start with 'logkeep watch --daemon')")
	}

	// Live severity from memory/disk probes
	severity := newGate(cfg).Classify()
	fmt.Printf("Alert severity: %s (mem floor %d MB, disk floor %d MB)\n",
		severity, cfg.Alert.MinFreeMemMB, cfg.Alert.MinFreeDiskMB)

	return nil
}
