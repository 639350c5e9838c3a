// Package output provides terminal output utilities for droidprune.
//
// This package includes:
//   - Table rendering for package rows, batch outcomes, snapshots and the action journal
//   - A batch progress display driven by per-package outcomes
//   - A spinner for device queries
//
// Tier labels are colored when stdout is a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/droidprune/internal/analyzer"
	"github.com/blackwell-systems/droidprune/internal/catalog"
	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/store"
)

// ANSI color codes for tier display
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

// RenderPackageTable renders the visible rows in the order given.
func RenderPackageTable(rows []inventory.Row) string {
	if len(rows) == 0 {
		return "No packages match the current filters.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-3s %-44s %-11s %-8s %s\n",
		"", "Package", "Status", "List", "Tier"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, r := range rows {
		mark := "[ ]"
		if r.Selected {
			mark = "[x]"
		}
		sb.WriteString(fmt.Sprintf("%-3s %-44s %-11s %-8s %s\n",
			mark,
			truncate(r.Name, 44),
			r.Status,
			truncate(r.Category, 8),
			colorize(tierColor(r.Tier), formatTier(r.Tier))))
	}

	return sb.String()
}

// RenderCountLine renders the footer below a package table.
func RenderCountLine(visible, pending, selected int) string {
	line := fmt.Sprintf("%d shown, %d selected", visible, pending)
	if hidden := selected - pending; hidden > 0 {
		line += fmt.Sprintf(" (+%d hidden by filters)", hidden)
	}
	return line + "\n"
}

// RenderPackageDetail renders everything known about one package.
func RenderPackageDetail(pkg inventory.Package, entry *catalog.Entry, dependents []string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Package:     %s\n", pkg.Name))
	sb.WriteString(fmt.Sprintf("Status:      %s\n", pkg.Status))
	sb.WriteString(fmt.Sprintf("List:        %s\n", pkg.Category))
	sb.WriteString(fmt.Sprintf("Tier:        %s\n", colorize(tierColor(pkg.Tier), formatTier(pkg.Tier))))

	if entry != nil {
		if len(entry.Labels) > 0 {
			sb.WriteString(fmt.Sprintf("Labels:      %s\n", strings.Join(entry.Labels, ", ")))
		}
		if len(entry.Dependencies) > 0 {
			sb.WriteString(fmt.Sprintf("Depends on:  %s\n", strings.Join(entry.Dependencies, ", ")))
		}
		if len(entry.NeededBy) > 0 {
			sb.WriteString(fmt.Sprintf("Needed by:   %s\n", strings.Join(entry.NeededBy, ", ")))
		}
	}
	if len(dependents) > 0 {
		sb.WriteString(fmt.Sprintf("Warning:     removing may break %s\n", strings.Join(dependents, ", ")))
	}

	sb.WriteString("\n")
	sb.WriteString(pkg.Description)
	sb.WriteString("\n")
	return sb.String()
}

// RenderOutcomeTable renders the per-package results of a batch.
func RenderOutcomeTable(outcomes []inventory.Outcome) string {
	if len(outcomes) == 0 {
		return "Nothing to do.\n"
	}

	var sb strings.Builder
	var applied, failed, skipped int

	sb.WriteString(fmt.Sprintf("%-44s %-8s %-8s %s\n", "Package", "Action", "Result", "Detail"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, o := range outcomes {
		var detail string
		switch o.Kind {
		case inventory.OutcomeApplied:
			applied++
			detail = fmt.Sprintf("%s -> %s", o.From, o.To)
		case inventory.OutcomeFailed:
			failed++
			if o.Err != nil {
				detail = o.Err.Error()
			}
		case inventory.OutcomeSkipped:
			skipped++
			detail = o.Reason
		}

		action := string(o.Action)
		if action == "" {
			action = "-"
		}
		sb.WriteString(fmt.Sprintf("%-44s %-8s %-8s %s\n",
			truncate(o.Name, 44),
			action,
			o.Kind,
			truncate(detail, 60)))
	}

	sb.WriteString(fmt.Sprintf("\n%d applied, %d failed, %d skipped\n", applied, failed, skipped))
	return sb.String()
}

// RenderSummary renders inventory counts per tier and per list.
func RenderSummary(s *analyzer.Summary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Packages: %d (%d installed, %d uninstalled, %d unlisted)\n\n",
		s.Total, s.Installed, s.Uninstalled, s.Unlisted))

	sb.WriteString(fmt.Sprintf("%-12s %9s %11s\n", "Tier", "Installed", "Uninstalled"))
	sb.WriteString(strings.Repeat("─", 34))
	sb.WriteString("\n")
	for _, tc := range s.Tiers {
		sb.WriteString(fmt.Sprintf("%-12s %9d %11d\n", formatTier(tc.Tier), tc.Installed, tc.Uninstalled))
	}

	if len(s.Categories) > 0 {
		lists := make([]string, 0, len(s.Categories))
		for name := range s.Categories {
			lists = append(lists, name)
		}
		sort.Strings(lists)

		sb.WriteString("\nInstalled by list:\n")
		for _, name := range lists {
			sb.WriteString(fmt.Sprintf("  %-12s %d\n", name, s.Categories[name]))
		}
	}

	return sb.String()
}

// RenderSnapshotTable renders a table of snapshots, newest first.
func RenderSnapshotTable(snapshots []*store.Snapshot) string {
	if len(snapshots) == 0 {
		return "No snapshots found.\n"
	}

	sorted := make([]*store.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-5s %-17s %-10s %s\n",
		"ID", "Created", "Packages", "Reason"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, snap := range sorted {
		sb.WriteString(fmt.Sprintf("%-5d %-17s %-10d %s\n",
			snap.ID,
			formatRelativeTime(snap.CreatedAt),
			snap.PackageCount,
			truncate(snap.Reason, 40)))
	}

	return sb.String()
}

// RenderHistoryTable renders journaled actions in the order given.
func RenderHistoryTable(records []*store.ActionRecord) string {
	if len(records) == 0 {
		return "No actions recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %-8s %-8s %-40s %s\n",
		"Time", "Batch", "Action", "Package", "Result"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, r := range records {
		batch := r.BatchID
		if len(batch) > 8 {
			batch = batch[:8]
		}
		sb.WriteString(fmt.Sprintf("%-16s %-8s %-8s %-40s %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"),
			batch,
			r.Action,
			truncate(r.Package, 40),
			r.Outcome))
	}

	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

// formatTier returns a display string for a tier; packages the catalog does
// not know have an empty tier.
func formatTier(tier string) string {
	if tier == inventory.TierUnknown {
		return "-"
	}
	return tier
}

// tierColor returns the ANSI color code for a tier.
func tierColor(tier string) string {
	switch tier {
	case inventory.TierSafe:
		return colorGreen
	case inventory.TierAdvanced:
		return colorYellow
	case inventory.TierExpert, inventory.TierUnsafe:
		return colorRed
	default:
		return colorGray
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
