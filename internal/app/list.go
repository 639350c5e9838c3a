package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/output"
)

var (
	listFilters    criteriaFlags
	listFlagCached bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List device packages matching the filters",
		Long: `List the system packages of the device that match every filter.

The default view shows installed packages of the safe tier from any list.
Rows are sorted by name. Use 'all' to disable a filter.

Tiers, from least to most conservative:
  safe      safe to remove for nearly everyone ("Recommended" in UAD lists)
  advanced  removes features some people rely on
  expert    can break important functionality
  unsafe    never removed by droidprune`,
		Example: `  # Default view
  droidprune list

  # Every Google package, whatever its tier or status
  droidprune list --list google --tier all --state all

  # Packages whose name contains "facebook"
  droidprune list --search facebook --tier all

  # Use the last scan instead of querying the device
  droidprune list --cached`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
)

func init() {
	listFilters.register(listCmd.Flags())
	listCmd.Flags().BoolVar(&listFlagCached, "cached", false, "use the inventory of the last scan")

	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	criteria, err := listFilters.criteria()
	if err != nil {
		return err
	}

	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	if listFlagCached {
		scan, err := e.store.LatestScan()
		if err != nil {
			return fmt.Errorf("failed to read last scan: %w", err)
		}
		if scan == nil {
			return fmt.Errorf("no scan recorded yet\n\nRun 'droidprune scan' first, or drop --cached to query the device")
		}
	}

	eng, err := e.newEngine(cmd.Context(), listFlagCached)
	if err != nil {
		return err
	}
	defer eng.Close()

	eng.SetCriteria(criteria)

	out := cmd.OutOrStdout()
	fmt.Fprint(out, output.RenderPackageTable(eng.Visible()))
	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderCountLine(len(eng.Visible()), eng.PendingCount(), eng.SelectedCount()))
	return nil
}
