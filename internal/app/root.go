package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/droidprune/internal/config"
)

var (
	configPath  string
	dbPath      string
	serialFlag  string
	catalogFlag string
	adbFlag     string
	userFlag    int
	verbose     bool

	// userOverride is the --user flag; its Changed field tells an explicit
	// user 0 apart from the default.
	userOverride *pflag.Flag

	// RootCmd is the root command for droidprune
	RootCmd = &cobra.Command{
		Use:   "droidprune",
		Short: "Remove and restore Android system packages over adb",
		Long: `droidprune lists the system packages of an Android device, classifies them
with a community-maintained debloat list and removes or restores them for the
current user. Removed packages stay on the system image and can be restored at
any time; a snapshot is recorded before every batch.

Packages of the "unsafe" tier are never removed.

Quick Start:
  1. droidprune doctor
  2. droidprune scan
  3. droidprune list
  4. droidprune apply --all --dry-run

Examples:
  # Browse safe, installed packages (the default view)
  droidprune list

  # Work interactively
  droidprune session

  # Remove one package
  droidprune remove com.facebook.appmanager

  # Undo the last batch
  droidprune undo latest`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, _ := loadConfig()
			fmt.Fprintln(out, "droidprune: Android system package cleanup over adb")
			fmt.Fprintln(out)
			if cfg != nil {
				if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
					fmt.Fprintln(out, "Run 'droidprune doctor' to check your setup, then 'droidprune scan'.")
					fmt.Fprintln(out, "Run 'droidprune --help' for the full reference.")
					return nil
				}
			}
			fmt.Fprintln(out, "Tip: Run 'droidprune status' for a summary of the last scan.")
			fmt.Fprintln(out, "     Run 'droidprune session' to select packages interactively.")
			fmt.Fprintln(out, "     Run 'droidprune --help' for all commands.")
			return nil
		},
	}
)

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default: ~/.config/droidprune/config.yaml)")
	flags.StringVar(&dbPath, "db", "", "database path (default: ~/.droidprune/droidprune.db)")
	flags.StringVarP(&serialFlag, "serial", "s", "", "device serial, as listed by 'adb devices'")
	flags.StringVar(&catalogFlag, "catalog", "", "classification list (JSON or YAML)")
	flags.StringVar(&adbFlag, "adb", "", "path to the adb binary")
	flags.IntVar(&userFlag, "user", 0, "Android user id packages are removed for")
	userOverride = flags.Lookup("user")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command. An interrupt cancels the running command's
// context; device calls in flight are abandoned.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config file and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if dbPath != "" {
		cfg.DB = dbPath
	}
	if serialFlag != "" {
		cfg.Serial = serialFlag
	}
	if catalogFlag != "" {
		cfg.Catalog = catalogFlag
	}
	if adbFlag != "" {
		cfg.ADBPath = adbFlag
	}
	if userOverride != nil && userOverride.Changed {
		cfg.User = userFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}
