package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/catalog"
	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/output"
	"github.com/blackwell-systems/droidprune/internal/scanner"
)

var (
	showFlagCached bool

	showCmd = &cobra.Command{
		Use:     "show <package>",
		Aliases: []string{"explain"},
		Short:   "Show the description and classification of a package",
		Long: `Display everything known about one package: its status on the device, the
list and tier it is classified under, its catalog labels and dependencies, and
the installed packages that may break if it is removed.`,
		Example: `  droidprune show com.google.android.youtube
  droidprune show com.samsung.android.bixby.agent --cached`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}
)

func init() {
	showCmd.Flags().BoolVar(&showFlagCached, "cached", false, "use the inventory of the last scan")

	RootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	name := args[0]

	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	eng, err := e.newEngine(cmd.Context(), showFlagCached)
	if err != nil {
		return err
	}
	defer eng.Close()

	pkg, ok := eng.Package(name)
	if !ok {
		return unknownPackageError(name, namesOf(eng.Packages()))
	}

	var entry *catalog.Entry
	if en, ok := e.catalog.Entry(name); ok {
		entry = &en
	}

	dependents := scanner.InstalledDependents(inventory.New(eng.Packages()), e.catalog, name)

	fmt.Fprint(cmd.OutOrStdout(), output.RenderPackageDetail(pkg, entry, dependents))
	return nil
}
