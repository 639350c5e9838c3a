package app

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/blackwell-systems/droidprune/internal/analyzer"
	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/output"
	"github.com/blackwell-systems/droidprune/internal/scanner"
)

// plan counts what a batch over pending rows will do.
type plan struct {
	removals int
	restores int
	skipped  int
}

func planBatch(pending []inventory.Row, mode inventory.Mode) plan {
	var p plan
	for _, r := range pending {
		t, ok := inventory.NextTransition(r.Status)
		switch {
		case !ok, !mode.Permits(t.Action), !inventory.Allowed(t.Action, r.Tier):
			p.skipped++
		case t.Action == inventory.ActionRemove:
			p.removals++
		default:
			p.restores++
		}
	}
	return p
}

func (p plan) String() string {
	s := fmt.Sprintf("%d to remove, %d to restore", p.removals, p.restores)
	if p.skipped > 0 {
		s += fmt.Sprintf(", %d skipped", p.skipped)
	}
	return s
}

// printBatchWarnings lists selected packages the filters hide, unsafe
// packages that will be skipped and installed packages that may break.
func printBatchWarnings(w io.Writer, e *env, inv *inventory.Inventory, pending []inventory.Row, hidden []string, mode inventory.Mode) {
	if len(hidden) > 0 {
		fmt.Fprintf(w, "Note: %d selected package(s) are hidden by the filters and will not be changed:\n", len(hidden))
		for _, name := range hidden {
			fmt.Fprintf(w, "  - %s\n", name)
		}
		fmt.Fprintln(w)
	}

	if !mode.Permits(inventory.ActionRemove) {
		return
	}

	var removing []string
	for _, r := range pending {
		if r.Status == inventory.Installed {
			removing = append(removing, r.Name)
		}
	}
	warnings := analyzer.ValidateRemoval(inv, removing)

	deps := scanner.RemovalWarnings(inv, e.catalog, pending)
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		warnings = append(warnings, fmt.Sprintf("%s: removing may break %s", name, strings.Join(deps[name], ", ")))
	}

	for _, warning := range warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", warning)
	}
	if len(warnings) > 0 {
		fmt.Fprintln(w)
	}
}

// snapshotBefore records the statuses of pkgs before they change. Old
// snapshot files are pruned afterwards.
func (e *env) snapshotBefore(pkgs []inventory.Package, reason string) (int64, error) {
	id, err := e.snaps.CreateSnapshot(pkgs, reason, e.cfg.Serial)
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}
	if removed, err := e.snaps.CleanupOldSnapshots(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to clean up old snapshots")
	} else if removed > 0 {
		e.logger.Debug().Int("removed", removed).Msg("old snapshots cleaned up")
	}
	return id, nil
}

// journal stores the report's outcomes under a new batch id. The store also
// brings cached statuses up to date. A journal failure does not undo the
// batch, so it is logged rather than returned.
func (e *env) journal(report *inventory.Report) string {
	if len(report.Outcomes) == 0 {
		return ""
	}
	batchID := uuid.NewString()
	if err := e.store.RecordOutcomes(batchID, report.Outcomes); err != nil {
		e.logger.Warn().Err(err).Str("batch", batchID).Msg("failed to journal outcomes")
	}
	if errs := report.Errors(); len(errs) > 0 {
		e.logger.Debug().Err(errors.Join(errs...)).Str("batch", batchID).Msg("batch finished with failures")
	}
	return batchID
}

// printBatchResult prints the outcome table and how to undo the batch.
func printBatchResult(w io.Writer, report *inventory.Report, batchID string, snapshotID int64) {
	fmt.Fprintln(w)
	fmt.Fprint(w, output.RenderOutcomeTable(report.Outcomes))

	if batchID != "" {
		fmt.Fprintf(w, "\nBatch: %s\n", batchID)
	}
	if snapshotID > 0 && report.Count(inventory.OutcomeApplied) > 0 {
		fmt.Fprintf(w, "Snapshot: ID %d\n", snapshotID)
		fmt.Fprintf(w, "Undo with: droidprune undo %d\n", snapshotID)
	}
}
