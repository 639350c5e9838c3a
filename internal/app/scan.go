package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/analyzer"
	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/output"
)

var scanFlagQuiet bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Read the package inventory from the device",
	Long: `Query the connected device for its system packages, classify them with the
removal list and cache the result.

The cached inventory backs 'list --cached', 'show --cached' and 'status',
which then work without a device.`,
	Example: `  droidprune scan
  droidprune scan --serial emulator-5554`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanFlagQuiet, "quiet", "q", false, "only print the package count")

	RootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	dev, err := e.client.DeviceInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to query device: %w", err)
	}
	if dev.Serial != "" {
		e.scanner.Device = dev.Serial
	}

	var spinner *output.Spinner
	if !scanFlagQuiet {
		spinner = output.NewSpinner("Reading packages")
		spinner.SetWriter(out)
		spinner.Start()
	}
	inv, err := e.scanner.Load(ctx)
	if err != nil {
		if spinner != nil {
			spinner.Stop()
		}
		return fmt.Errorf("failed to scan device: %w", err)
	}
	if spinner != nil {
		spinner.StopWithMessage(fmt.Sprintf("✓ Read %d packages", inv.Len()))
	}

	if scanFlagQuiet {
		fmt.Fprintf(out, "%d packages\n", inv.Len())
		return nil
	}

	fmt.Fprintf(out, "\nDevice: %s %s (Android %s, SDK %s)\n", dev.Manufacturer, dev.Model, dev.AndroidVersion, dev.SDK)
	if dev.Serial != "" {
		fmt.Fprintf(out, "Serial: %s\n", dev.Serial)
	}
	fmt.Fprintf(out, "User:   %d\n\n", e.cfg.User)
	fmt.Fprint(out, output.RenderSummary(analyzer.Summarize(inv)))

	rec := analyzer.Recommendations(inv, inventory.TierSafe)
	if len(rec.Packages) > 0 {
		fmt.Fprintf(out, "\n%d installed package(s) are recommended for removal.\n", len(rec.Packages))
		fmt.Fprintln(out, "Review them with: droidprune list")
	}
	return nil
}
