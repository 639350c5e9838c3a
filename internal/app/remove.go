package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/scanner"
)

var (
	rowFlagYes        bool
	rowFlagNoSnapshot bool

	removeCmd = &cobra.Command{
		Use:   "remove <package>...",
		Short: "Uninstall packages for the current user",
		Long: `Uninstall the named packages for the configured Android user. The packages
stay on the system image and can be restored with 'droidprune restore'.

Unlike apply, remove ignores the list filters: every named package is
handled. Packages that are already uninstalled are skipped, and packages of
the unsafe tier are never removed.`,
		Example: `  droidprune remove com.facebook.appmanager com.facebook.services
  droidprune remove com.samsung.android.bixby.agent --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRowAction(cmd, args, inventory.ActionRemove)
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore <package>...",
		Short: "Reinstall uninstalled packages from the system image",
		Long: `Reinstall the named packages for the configured Android user. Only packages
that were uninstalled for the user (and are still on the system image) can be
restored; installed packages are skipped.`,
		Example: `  droidprune restore com.google.android.youtube`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRowAction(cmd, args, inventory.ActionRestore)
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{removeCmd, restoreCmd} {
		c.Flags().BoolVar(&rowFlagYes, "yes", false, "skip the confirmation prompt")
		c.Flags().BoolVar(&rowFlagNoSnapshot, "no-snapshot", false, "skip the snapshot (the change cannot be undone)")
		RootCmd.AddCommand(c)
	}
}

func runRowAction(cmd *cobra.Command, args []string, action inventory.Action) error {
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

	var pkgs []inventory.Package
	seen := make(map[string]bool, len(args))
	for _, name := range args {
		if seen[name] {
			continue
		}
		seen[name] = true
		pkg, ok := eng.Package(name)
		if !ok {
			return unknownPackageError(name, namesOf(eng.Packages()))
		}
		pkgs = append(pkgs, pkg)
	}

	out := cmd.OutOrStdout()
	if action == inventory.ActionRemove {
		inv := inventory.New(eng.Packages())
		for _, pkg := range pkgs {
			if !inventory.Allowed(action, pkg.Tier) {
				fmt.Fprintf(out, "  ⚠ %s: %s tier, will be skipped\n", pkg.Name, pkg.Tier)
				continue
			}
			var kept []string
			for _, dep := range scanner.InstalledDependents(inv, e.catalog, pkg.Name) {
				if !seen[dep] {
					kept = append(kept, dep)
				}
			}
			if len(kept) > 0 {
				fmt.Fprintf(out, "  ⚠ %s: removing may break %s\n", pkg.Name, strings.Join(kept, ", "))
			}
		}
	}

	if !rowFlagYes && !confirm(out, cmd.InOrStdin(), fmt.Sprintf("%s %d package(s)?", capitalize(string(action)), len(pkgs))) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	if err := e.executor.Preflight(ctx); err != nil {
		return err
	}

	var snapshotID int64
	if !rowFlagNoSnapshot {
		snapshotID, err = e.snapshotBefore(pkgs, fmt.Sprintf("before %s", action))
		if err != nil {
			return err
		}
	}

	report := &inventory.Report{}
	for _, pkg := range pkgs {
		o := e.executor.ApplyOne(ctx, pkg, action)
		report.Outcomes = append(report.Outcomes, o)
	}
	eng.Record(report.Outcomes...)

	batchID := e.journal(report)
	printBatchResult(out, report, batchID, snapshotID)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
