package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/logkeep/internal/diagnostics"
	"github.com/blackwell-systems/logkeep/internal/intercept"
	"github.com/blackwell-systems/logkeep/internal/output"
)

var (
	captureEmergency bool

	captureCmd = &cobra.Command{
		Use:   "capture",
		Short: "Capture a system-state diagnostic bundle on demand",
		Long: `Collects a system-state snapshot (kernel info, memory, processes, disk,
mounts, sockets, recent kernel messages) into a timestamped bundle under
the diagnostics directory, and points the latest-state symlink at it.

With --emergency, deeper sections (kernel modules, per-thread process
table) are included, matching what an emergency-severity error capture
would collect.`,
		Example: `  # Standard snapshot
  logkeep capture

  # Deep snapshot with emergency-only sections
  logkeep capture --emergency`,
		RunE: runCapture,
	}
)

func init() {
	captureCmd.Flags().BoolVar(&captureEmergency, "emergency", false, "include emergency-only sections")

	RootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureDataDirs(cfg); err != nil {
		return err
	}

	collector, err := diagnostics.New(cfg.DiagnosticsDir(),
		diagnostics.WithMaxFrames(cfg.Diagnostics.MaxFrames),
		diagnostics.WithContextLines(cfg.Diagnostics.ContextLines),
	)
	if err != nil {
		return fmt.Errorf("failed to build diagnostic collector: %w", err)
	}

	spinner := output.NewSpinner("Capturing system state...")
	spinner.Start()

	path, err := collector.CaptureSystemState(intercept.NewID(), captureEmergency)
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to capture system state: %w", err)
	}
	spinner.StopWithMessage("✓ System state captured")

	fmt.Printf("\nBundle:  %s\n", path)
	fmt.Printf("Latest:  %s\n", filepath.Join(cfg.DiagnosticsDir(), "latest-state.txt"))
	return nil
}
