package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/logkeep/internal/lockfile"
	"github.com/blackwell-systems/logkeep/internal/retention"
)

var (
	pruneDir    string
	prunePrefix string
	pruneKeep   int

	pruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove old rotated artifacts beyond the retention window",
		Long: `Deletes the oldest artifacts matching a prefix in a directory, keeping
the newest N by modification time. Defaults to the backups directory under
the data directory with the configured retention count.

Deletion is best-effort: an artifact that cannot be removed is logged and
skipped, and the rest of the pass continues.`,
		Example: `  # Prune the managed backups directory
  logkeep prune

  # Keep the newest three nightly backups
  logkeep prune --dir ~/backups --prefix nightly- --keep 3`,
		RunE: runPrune,
	}
)

func init() {
	pruneCmd.Flags().StringVar(&pruneDir, "dir", "", "directory to prune (default: <data-dir>/backups)")
	pruneCmd.Flags().StringVar(&prunePrefix, "prefix", "", "only remove files with this name prefix")
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "number of newest artifacts to keep (default: rotation retention)")

	RootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := pruneDir
	if dir == "" {
		if err := ensureDataDirs(cfg); err != nil {
			return err
		}
		dir = cfg.BackupsDir()
	}
	keep := pruneKeep
	if keep == 0 {
		keep = cfg.Rotation.Retention
	}

	lock, err := lockfile.Acquire(cfg.LockFile())
	if err != nil {
		return fmt.Errorf("another maintenance pass is in progress: %w", err)
	}
	defer lock.Release()

	removed, err := retention.Prune(dir, prunePrefix, keep)
	if err != nil {
		return fmt.Errorf("failed to prune %s: %w", dir, err)
	}

	if len(removed) == 0 {
		fmt.Printf("Nothing to prune in %s (keeping newest %d).\n", dir, keep)
		return nil
	}

	for _, path := range removed {
		fmt.Printf("✓ Removed %s\n", path)
	}
	fmt.Printf("\nPruned %d artifact(s), keeping newest %d.\n", len(removed), keep)
	return nil
}
