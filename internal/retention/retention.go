// Package retention implements count-based pruning of timestamped artifacts.
// The same pass serves rotated log archives and backup files: keep the N most
// recently modified artifacts sharing a prefix, delete the rest.
package retention

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRetention is returned when keep is below one. A retention window
// of zero would delete every artifact ever created.
var ErrInvalidRetention = errors.New("retention count must be >= 1")

type artifact struct {
	name    string
	modTime time.Time
}

// Prune deletes the oldest artifacts in dir whose names start with prefix,
// keeping the keep most recently modified. Age is determined by modification
// time; names (which embed timestamps) only break ties. Deletion is
// best-effort: a failure on one artifact is logged and does not abort the
// rest of the pass. Returns the paths actually removed.
func Prune(dir, prefix string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRetention, keep)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("retention: read %s: %w", dir, err)
	}

	var artifacts []artifact
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			slog.Warn("retention: stat failed, skipping", "file", e.Name(), "error", err)
			continue
		}
		artifacts = append(artifacts, artifact{name: e.Name(), modTime: info.ModTime()})
	}

	if len(artifacts) <= keep {
		return nil, nil
	}

	// Newest first; equal mtimes fall back to name order, which embeds the
	// rotation timestamp.
	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].modTime.Equal(artifacts[j].modTime) {
			return artifacts[i].modTime.After(artifacts[j].modTime)
		}
		return artifacts[i].name > artifacts[j].name
	})

	var removed []string
	for _, a := range artifacts[keep:] {
		path := filepath.Join(dir, a.name)
		if err := os.Remove(path); err != nil {
			slog.Warn("retention: delete failed", "file", path, "error", err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// Count returns how many artifacts in dir currently share prefix. Used by
// status reporting and tests.
func Count(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("retention: read %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			n++
		}
	}
	return n, nil
}
