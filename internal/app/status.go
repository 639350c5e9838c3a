package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/analyzer"
	"github.com/blackwell-systems/droidprune/internal/output"
)

// staleCheckTimeout bounds the device query status makes.
const staleCheckTimeout = 5 * time.Second

var statusFlagOffline bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached inventory and recent activity",
	Long: `Display what droidprune knows without changing anything:

  • the last scan and its package counts
  • batches applied in the last 30 days
  • whether the device is connected and the cache is still current`,
	Example: `  droidprune status
  droidprune status --offline`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlagOffline, "offline", false, "do not query the device")

	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	const label = "%-12s"

	scan, err := e.store.LatestScan()
	if err != nil {
		return fmt.Errorf("failed to read last scan: %w", err)
	}
	if scan == nil {
		fmt.Fprintln(out, "No scan recorded yet. Run 'droidprune scan' to get started.")
		return nil
	}

	inv, err := e.scanner.GetInventory()
	if err != nil {
		return err
	}

	device := scan.DeviceSerial
	if device == "" {
		device = "(default)"
	}
	fmt.Fprintf(out, label+"%s\n", "Device:", device)
	fmt.Fprintf(out, label+"%s (%d packages)\n", "Last scan:", scan.ScannedAt.Local().Format("2006-01-02 15:04"), scan.PackageCount)
	fmt.Fprintf(out, label+"%s (%d entries)\n", "Catalog:", e.catalog.Path(), e.catalog.Len())

	since := time.Now().AddDate(0, 0, -30)
	act, err := analyzer.New(e.store).Activity(since)
	if err != nil {
		return err
	}
	if act.Batches == 0 {
		fmt.Fprintf(out, label+"none in the last 30 days\n", "Activity:")
	} else {
		fmt.Fprintf(out, label+"%d batch(es) in the last 30 days: %d applied, %d failed, %d skipped\n",
			"Activity:", act.Batches, act.Applied, act.Failed, act.Skipped)
	}

	if !statusFlagOffline {
		ctx, cancel := context.WithTimeout(cmd.Context(), staleCheckTimeout)
		defer cancel()

		state, err := e.client.State(ctx)
		if err != nil {
			fmt.Fprintf(out, label+"not connected\n", "Connection:")
		} else {
			fmt.Fprintf(out, label+"%s\n", "Connection:", state)
			newCount, _ := e.client.CheckStaleness(ctx, inv.Names())
			if newCount > 0 {
				fmt.Fprintf(out, "\n⚠ %d package(s) on the device are not in the cache. Run 'droidprune scan'.\n", newCount)
			}
		}
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderSummary(analyzer.Summarize(inv)))
	return nil
}
