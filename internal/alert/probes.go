package alert

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// systemProbes reads live headroom from the kernel.
type systemProbes struct{}

// FreeMemoryBytes returns MemAvailable from /proc/meminfo, which accounts
// for reclaimable caches, not just completely free pages.
func (systemProbes) FreeMemoryBytes() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("alert: open meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("alert: parse MemAvailable: %w", err)
		}
		return kb * 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("alert: read meminfo: %w", err)
	}
	return 0, fmt.Errorf("alert: MemAvailable not found in /proc/meminfo")
}

// FreeDiskBytes returns the bytes available to unprivileged users on the
// filesystem containing path.
func (systemProbes) FreeDiskBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("alert: statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
