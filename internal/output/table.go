// Package output provides terminal output utilities for logkeep.
//
// This package includes:
//   - Table rendering for intercepted error events and rotation history
//   - Spinners for indeterminate operations
//   - Human-readable formatting for sizes, dates, and severities
//
// All table rendering functions use ASCII characters and ANSI color codes for terminal output.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/logkeep/internal/store"
)

// ANSI color codes for severity display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderEventTable renders a table of intercepted error events,
// newest first.
func RenderEventTable(events []*store.ErrorEvent) string {
	if len(events) == 0 {
		return "No error events recorded.\n"
	}

	sorted := make([]*store.ErrorEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-14s %-13s %-30s %-5s %-10s %s\n",
		"Error ID", "When", "Command", "Exit", "Severity", "Recovery"))
	sb.WriteString(strings.Repeat("─", 88))
	sb.WriteString("\n")

	for _, ev := range sorted {
		when := formatRelativeTime(ev.Timestamp)
		severity := formatSeverity(ev.Severity)

		sb.WriteString(fmt.Sprintf("%-14s %-13s %-30s %-5d %-10s %s\n",
			truncate(ev.ErrorID, 14),
			when,
			truncate(ev.Command, 30),
			ev.ExitCode,
			severity,
			formatRecovery(ev.Recovery)))
	}

	return sb.String()
}

// RenderEventDetail renders the full record of one intercepted error.
func RenderEventDetail(ev *store.ErrorEvent) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error ID:  %s\n", ev.ErrorID))
	sb.WriteString(fmt.Sprintf("Time:      %s (%s)\n",
		ev.Timestamp.Format(time.RFC3339), formatRelativeTime(ev.Timestamp)))
	if ev.Origin != "" {
		sb.WriteString(fmt.Sprintf("Origin:    %s\n", ev.Origin))
	}
	sb.WriteString(fmt.Sprintf("Command:   %s\n", ev.Command))
	sb.WriteString(fmt.Sprintf("Exit code: %d\n", ev.ExitCode))
	sb.WriteString(fmt.Sprintf("Severity:  %s\n", formatSeverity(ev.Severity)))
	sb.WriteString(fmt.Sprintf("Recovery:  %s\n", formatRecovery(ev.Recovery)))
	if ev.TracePath != "" {
		sb.WriteString(fmt.Sprintf("Trace:     %s\n", ev.TracePath))
	}
	if ev.StatePath != "" {
		sb.WriteString(fmt.Sprintf("State:     %s\n", ev.StatePath))
	}
	if ev.Notified {
		sb.WriteString("Notified:  yes\n")
	} else {
		sb.WriteString("Notified:  no\n")
	}

	return sb.String()
}

// RenderRotationTable renders a table of completed rotation passes,
// newest first.
func RenderRotationTable(rotations []*store.Rotation) string {
	if len(rotations) == 0 {
		return "No rotations recorded.\n"
	}

	sorted := make([]*store.Rotation, len(rotations))
	copy(sorted, rotations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-13s %-24s %-30s %s\n",
		"When", "File", "Rotated To", "Pruned"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, r := range sorted {
		sb.WriteString(fmt.Sprintf("%-13s %-24s %-30s %d\n",
			formatRelativeTime(r.Timestamp),
			truncate(r.File, 24),
			truncate(r.RotatedTo, 30),
			r.PrunedCount))
	}

	return sb.String()
}

// FormatSize converts a byte count to a human-readable IEC size.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// formatSeverity returns the colored display label for a severity.
func formatSeverity(severity string) string {
	switch strings.ToLower(severity) {
	case "emergency":
		return colorize(colorRed, "EMERGENCY")
	case "normal":
		return colorize(colorGreen, "normal")
	default:
		return colorize(colorGray, severity)
	}
}

// formatRecovery returns the display label for a recovery outcome.
func formatRecovery(recovery string) string {
	switch strings.ToLower(recovery) {
	case "recovered":
		return colorize(colorGreen, "✓ recovered")
	case "unrecovered":
		return colorize(colorYellow, "✗ unrecovered")
	default:
		return "—"
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
