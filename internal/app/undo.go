package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/output"
)

var (
	undoFlagList bool
	undoFlagYes  bool
)

var undoCmd = &cobra.Command{
	Use:   "undo [snapshot-id | latest]",
	Short: "Return packages to the statuses recorded in a snapshot",
	Long: `Return every package recorded in a snapshot to the status it had when the
snapshot was taken.

Snapshots are created before each batch. Packages that are already in their
recorded status are left alone.

Arguments:
  snapshot-id  The numeric ID of the snapshot to restore
  latest       Restore the most recent snapshot`,
	Example: `  droidprune undo --list           # List all snapshots
  droidprune undo latest           # Restore latest snapshot
  droidprune undo 42               # Restore snapshot ID 42
  droidprune undo 42 --yes         # Restore without confirmation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

func init() {
	undoCmd.Flags().BoolVar(&undoFlagList, "list", false, "list available snapshots")
	undoCmd.Flags().BoolVar(&undoFlagYes, "yes", false, "skip the confirmation prompt")

	RootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()

	if undoFlagList {
		snaps, err := e.snaps.ListSnapshots()
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		if len(snaps) == 0 {
			fmt.Fprintln(out, "No snapshots available.")
			fmt.Fprintln(out, "\nSnapshots are created before every batch.")
			return nil
		}
		fmt.Fprint(out, output.RenderSnapshotTable(snaps))
		fmt.Fprintln(out, "\nRestore with: droidprune undo <id>")
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("snapshot ID or 'latest' required\n\nUsage: droidprune undo [snapshot-id | latest]\n\nUse 'droidprune undo --list' to see available snapshots")
	}

	var snapshotID int64
	if strings.EqualFold(args[0], "latest") {
		latest, err := e.store.LatestSnapshot()
		if err != nil {
			return fmt.Errorf("failed to find latest snapshot: %w", err)
		}
		if latest == nil {
			return fmt.Errorf("no snapshots available\n\nSnapshots are created before every batch")
		}
		snapshotID = latest.ID
		fmt.Fprintf(out, "Using latest snapshot: ID %d\n", snapshotID)
	} else {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid snapshot ID: %s (must be a number or 'latest')", args[0])
		}
		snapshotID = id
	}

	snapshot, err := e.store.GetSnapshot(snapshotID)
	if err != nil {
		return fmt.Errorf("snapshot %d not found\n\nRun 'droidprune undo --list' to see available snapshots", snapshotID)
	}
	recorded, err := e.snaps.Packages(snapshotID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSnapshot %d\n", snapshot.ID)
	fmt.Fprintf(out, "  Created:  %s\n", snapshot.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Reason:   %s\n", snapshot.Reason)
	fmt.Fprintf(out, "  Packages: %d\n\n", len(recorded))
	for _, p := range recorded {
		fmt.Fprintf(out, "  - %s (%s)\n", p.Name, p.Status)
	}
	fmt.Fprintln(out)

	if !undoFlagYes && !confirm(out, cmd.InOrStdin(), fmt.Sprintf("Restore %d packages to their recorded status?", len(recorded))) {
		fmt.Fprintln(out, "Restoration cancelled.")
		return nil
	}

	ctx := cmd.Context()
	if err := e.executor.Preflight(ctx); err != nil {
		return err
	}
	current, err := e.scanner.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read device packages: %w", err)
	}

	report, err := e.snaps.RestoreSnapshot(ctx, snapshotID, current, e.executor)
	if err != nil {
		return err
	}
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(out, "Every package already has its recorded status. Nothing to do.")
		return nil
	}

	batchID := e.journal(report)
	printBatchResult(out, report, batchID, 0)
	return nil
}
