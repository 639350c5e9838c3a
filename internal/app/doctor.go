package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/adb"
	"github.com/blackwell-systems/droidprune/internal/catalog"
	"github.com/blackwell-systems/droidprune/internal/config"
	"github.com/blackwell-systems/droidprune/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check the setup",
	Long: `Runs diagnostic checks on your droidprune setup.

Checks:
  • adb is installed
  • A device is connected and authorized
  • The classification list loads
  • The database is accessible and holds a scan
  • Recommends next steps`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running droidprune diagnostics...")
	fmt.Fprintln(out)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, "✗ Configuration error:", err)
		return fmt.Errorf("diagnostics failed")
	}

	criticalIssues := 0
	warningIssues := 0

	// Config file
	if path, err := resolvedConfigPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintln(out, "✓ Config file:", path)
		} else {
			fmt.Fprintln(out, "✓ Using defaults (no config file at", path+")")
		}
	}

	// adb binary
	adbPath, err := exec.LookPath(cfg.ADBPath)
	if err != nil {
		fmt.Fprintln(out, "✗ adb not found:", cfg.ADBPath)
		fmt.Fprintln(out, "  Action: Install the Android platform tools or set adb_path in the config")
		criticalIssues++
	} else {
		fmt.Fprintln(out, "✓ adb found:", adbPath)
	}

	// Device
	if criticalIssues == 0 {
		client := adb.New(cfg.ADBPath, cfg.Serial, cfg.User, newLogger(cfg))
		if adbRunner != nil {
			client.WithRunner(adbRunner)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), staleCheckTimeout)
		state, err := client.State(ctx)
		cancel()
		switch {
		case err != nil:
			fmt.Fprintln(out, "✗ No device reachable:", err)
			fmt.Fprintln(out, "  Action: Connect the device and enable USB debugging")
			criticalIssues++
		case state == adb.StateUnauthorized:
			fmt.Fprintln(out, "✗ Device is unauthorized")
			fmt.Fprintln(out, "  Action: Accept the debugging prompt on the device")
			criticalIssues++
		case state != adb.StateDevice:
			fmt.Fprintf(out, "✗ Device state is %s\n", state)
			criticalIssues++
		default:
			fmt.Fprintln(out, "✓ Device connected")
		}
	}

	// Catalog
	cat, err := catalog.Load(cfg.Catalog)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintln(out, "⚠ No classification list at", cfg.Catalog)
		fmt.Fprintln(out, "  Every package will be shown as unlisted")
		warningIssues++
	case err != nil:
		fmt.Fprintln(out, "✗ Classification list is invalid:", err)
		criticalIssues++
	default:
		fmt.Fprintf(out, "✓ Classification list: %d entries\n", cat.Len())
	}

	// Database
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		fmt.Fprintln(out, "⚠ Database not found at:", cfg.DB)
		fmt.Fprintln(out, "  Action: Run 'droidprune scan' to create it")
		warningIssues++
	} else {
		st, err := store.New(cfg.DB)
		if err != nil {
			fmt.Fprintln(out, "✗ Cannot open database:", err)
			criticalIssues++
		} else {
			scan, err := st.LatestScan()
			switch {
			case err != nil:
				fmt.Fprintln(out, "✗ Cannot read database:", err)
				criticalIssues++
			case scan == nil:
				fmt.Fprintln(out, "⚠ No scan recorded yet")
				fmt.Fprintln(out, "  Action: Run 'droidprune scan'")
				warningIssues++
			default:
				fmt.Fprintf(out, "✓ Last scan: %s (%d packages)\n", scan.ScannedAt.Local().Format("2006-01-02 15:04"), scan.PackageCount)
			}
			st.Close()
		}
	}

	fmt.Fprintln(out)
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  • Browse packages: droidprune list")
		fmt.Fprintln(out, "  • Select interactively: droidprune session")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}
	fmt.Fprintf(out, "Found %d warning(s). droidprune will work, with limits.\n", warningIssues)
	return nil
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}
