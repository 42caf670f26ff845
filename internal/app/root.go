package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/logkeep/internal/config"
)

var (
	cfgFile string
	dataDir string

	// RootCmd is the root command for logkeep
	RootCmd = &cobra.Command{
		Use:   "logkeep",
		Short: "Logging and diagnostics engine for long-running scripts",
		Long: `logkeep gives shell scripts and services a managed logging pipeline:
leveled logs with size-based rotation and background compression, error
interception with per-failure diagnostic bundles, rule-based recovery
attempts, and threshold-driven alerting.

Quick Start:
  1. logkeep doctor                 # check the installation
  2. logkeep watch --daemon         # keep logs rotated in the background
  3. your-script.sh || logkeep report --cmd "your-script.sh" --exit $?
  4. logkeep events                 # review intercepted failures

Features:
  • Size-triggered rotation with zstd/xz/gzip archive compression
  • Retention pruning for rotated logs and backups
  • Stack-trace and system-state bundles per intercepted error
  • First-match recovery rules with at-most-once attempts
  • Live memory/disk thresholds escalating alerts to emergency

Examples:
  # Rotate any managed log past its size ceiling
  logkeep rotate

  # Record a failed command and capture diagnostics
  logkeep report --cmd "pkg install nginx" --exit 100

  # Show the most recent intercepted errors
  logkeep events --limit 20

  # Prune old backups, keeping the newest five
  logkeep prune --dir ~/backups --prefix nightly- --keep 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("logkeep: logging and diagnostics engine")
			fmt.Println()
			fmt.Println("Run 'logkeep doctor' to check your installation.")
			fmt.Println("Run 'logkeep --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.logkeep/config.yaml if present)")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.logkeep)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig resolves the effective configuration: defaults, then the config
// file, then LOGKEEP_* env vars, then command-line flags.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if def, err := defaultConfigFile(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}
