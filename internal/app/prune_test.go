package app

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func setFlags(t *testing.T, tmpDataDir string) {
	t.Helper()

	oldDataDir, oldCfgFile := dataDir, cfgFile
	dataDir, cfgFile = tmpDataDir, ""
	t.Cleanup(func() { dataDir, cfgFile = oldDataDir, oldCfgFile })
}

func TestRunPrune_KeepsNewest(t *testing.T) {
	tmp := t.TempDir()
	setFlags(t, tmp)

	dir := filepath.Join(tmp, "archive")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, fmt.Sprintf("nightly-%d.tar", i))
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(p, ts, ts); err != nil {
			t.Fatalf("failed to set mtime: %v", err)
		}
	}

	oldDir, oldPrefix, oldKeep := pruneDir, prunePrefix, pruneKeep
	pruneDir, prunePrefix, pruneKeep = dir, "nightly-", 2
	defer func() { pruneDir, prunePrefix, pruneKeep = oldDir, oldPrefix, oldKeep }()

	if err := runPrune(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runPrune() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d files after prune, want 2", len(entries))
	}
	for _, name := range []string{"nightly-3.tar", "nightly-4.tar"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("newest file %s should survive: %v", name, err)
		}
	}
}

func TestRunPrune_ReleasesLock(t *testing.T) {
	tmp := t.TempDir()
	setFlags(t, tmp)

	oldDir, oldPrefix, oldKeep := pruneDir, prunePrefix, pruneKeep
	pruneDir, prunePrefix, pruneKeep = "", "", 0
	defer func() { pruneDir, prunePrefix, pruneKeep = oldDir, oldPrefix, oldKeep }()

	if err := runPrune(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runPrune() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmp, "rotate.lock")); !os.IsNotExist(err) {
		t.Error("lock file should be released after prune")
	}
}
