package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/output"
)

var (
	applyFilters        criteriaFlags
	applyFlagAll        bool
	applyFlagMode       string
	applyFlagDryRun     bool
	applyFlagYes        bool
	applyFlagNoSnapshot bool

	applyCmd = &cobra.Command{
		Use:   "apply [packages...]",
		Short: "Remove or restore the selected packages",
		Long: `Select packages and apply the change each one calls for: installed packages
are removed, uninstalled packages are restored.

Only selected packages that match the filters are changed. A named package
hidden by the filters stays untouched and is listed in a notice. The filters
default to installed packages of the safe tier; widen them with --tier,
--list and --state.

Modes:
  auto     remove installed and restore uninstalled packages (default)
  remove   only remove; selected uninstalled packages are skipped
  restore  only restore; selected installed packages are skipped

Packages of the unsafe tier are never removed. A failure on one package
does not stop the others.`,
		Example: `  # Preview removing every installed package of the safe tier
  droidprune apply --all --dry-run

  # Remove two named advanced packages
  droidprune apply --tier advanced com.samsung.android.bixby.agent com.samsung.android.game.gos

  # Restore everything uninstalled from the google list
  droidprune apply --state uninstalled --list google --tier all --all --mode restore`,
		RunE: runApply,
	}
)

func init() {
	applyFilters.register(applyCmd.Flags())
	applyCmd.Flags().BoolVar(&applyFlagAll, "all", false, "select every package matching the filters")
	applyCmd.Flags().StringVar(&applyFlagMode, "mode", string(inventory.ModeAuto), "auto, remove or restore")
	applyCmd.Flags().BoolVar(&applyFlagDryRun, "dry-run", false, "show what would change without changing it")
	applyCmd.Flags().BoolVar(&applyFlagYes, "yes", false, "skip the confirmation prompt")
	applyCmd.Flags().BoolVar(&applyFlagNoSnapshot, "no-snapshot", false, "skip the snapshot (the batch cannot be undone)")

	RootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	mode, err := inventory.ParseMode(applyFlagMode)
	if err != nil {
		return err
	}
	criteria, err := applyFilters.criteria()
	if err != nil {
		return err
	}
	if len(args) == 0 && !applyFlagAll {
		return fmt.Errorf("no packages selected\n\nName the packages to change, or pass --all to select every package matching the filters")
	}

	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	eng, err := e.newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer eng.Close()

	eng.SetCriteria(criteria)

	seen := make(map[string]bool, len(args))
	for _, name := range args {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := eng.Package(name); !ok {
			return unknownPackageError(name, namesOf(eng.Packages()))
		}
		if _, err := eng.Toggle(name); err != nil {
			return err
		}
	}
	if applyFlagAll {
		eng.SelectAllVisible()
	}

	out := cmd.OutOrStdout()
	pending := inventory.Pending(eng.Visible())
	inv := inventory.New(eng.Packages())

	printBatchWarnings(out, e, inv, pending, eng.HiddenSelections(), mode)

	if len(pending) == 0 {
		fmt.Fprintln(out, "No selected package matches the filters. Nothing to do.")
		return nil
	}

	fmt.Fprintf(out, "Packages to change (%s mode):\n\n", mode)
	fmt.Fprint(out, output.RenderPackageTable(pending))
	fmt.Fprintf(out, "\nSummary: %s\n", planBatch(pending, mode))
	if applyFlagNoSnapshot {
		fmt.Fprintln(out, "  ⚠  Snapshot: SKIPPED (--no-snapshot), this batch cannot be undone")
	}
	fmt.Fprintln(out)

	if applyFlagDryRun {
		fmt.Fprintln(out, "Dry-run mode: no packages will be changed.")
		return nil
	}

	if !applyFlagYes && !confirm(out, cmd.InOrStdin(), fmt.Sprintf("Apply changes to %d packages?", len(pending))) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	var snapshotID int64
	if !applyFlagNoSnapshot {
		snapshotID, err = e.snapshotBefore(packagesOf(pending), fmt.Sprintf("before apply (%s)", mode))
		if err != nil {
			return err
		}
	}

	progress := output.NewBatchProgress(len(pending))
	progress.SetWriter(out)
	e.executor.OnOutcome(progress.Observe)

	if _, err := eng.Apply(ctx, mode); err != nil {
		return err
	}
	res := <-eng.Actions()
	progress.Finish()

	if err := eng.HandleAction(res); err != nil {
		return fmt.Errorf("batch not started: %w", err)
	}

	batchID := e.journal(res.Report)
	printBatchResult(out, res.Report, batchID, snapshotID)
	return nil
}
