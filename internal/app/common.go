package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/droidprune/internal/adb"
	"github.com/blackwell-systems/droidprune/internal/catalog"
	"github.com/blackwell-systems/droidprune/internal/config"
	"github.com/blackwell-systems/droidprune/internal/engine"
	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/logging"
	"github.com/blackwell-systems/droidprune/internal/scanner"
	"github.com/blackwell-systems/droidprune/internal/snapshots"
	"github.com/blackwell-systems/droidprune/internal/store"
)

// adbRunner replaces the adb command runner when set. Tests use it to
// script a device.
var adbRunner adb.Runner

// logOutput is where diagnostics go; command output goes to stdout.
var logOutput io.Writer = os.Stderr

// env holds the components a command works with.
type env struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *store.Store
	catalog  *catalog.Catalog
	client   *adb.Client
	scanner  *scanner.Scanner
	executor *inventory.Executor
	snaps    *snapshots.Manager
}

// openEnv loads the configuration and builds the components. The store is
// opened and its schema created when withStore is set.
func openEnv(withStore bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, logger: newLogger(cfg)}

	if withStore {
		st, err := store.Open(cfg.DB)
		if err != nil {
			return nil, err
		}
		e.store = st
		e.snaps = snapshots.New(st, cfg.SnapshotDir)
	}

	e.catalog = loadCatalog(cfg.Catalog, e.logger)

	e.client = adb.New(cfg.ADBPath, cfg.Serial, cfg.User, e.logger)
	if adbRunner != nil {
		e.client.WithRunner(adbRunner)
	}

	e.scanner = scanner.New(e.client, e.catalog, e.store, e.logger)
	e.scanner.Device = cfg.Serial
	e.executor = inventory.NewExecutor(e.client, e.logger)
	return e, nil
}

// Close releases the store.
func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	lc := logging.Resolve(logging.ProfileRuntime, cfg.LogLevel)
	if verbose && lc.Level > zerolog.DebugLevel {
		lc.Level = zerolog.DebugLevel
	}
	return logging.New(lc, logOutput)
}

// loadCatalog loads the classification list. Without one every package is
// unlisted, which still allows browsing and restoring; the returned catalog
// stays bound to path so a later Reload can pick the file up.
func loadCatalog(path string, logger zerolog.Logger) *catalog.Catalog {
	cat, err := catalog.Load(path)
	if err == nil {
		logger.Debug().Str("path", path).Int("entries", cat.Len()).Msg("catalog loaded")
		return cat
	}
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("path", path).Msg("no classification list found; every package is unlisted")
	} else {
		logger.Warn().Err(err).Msg("failed to load classification list")
	}
	return catalog.New(path)
}

// loaderFunc adapts a function to engine.Loader.
type loaderFunc func(ctx context.Context) (*inventory.Inventory, error)

func (f loaderFunc) Load(ctx context.Context) (*inventory.Inventory, error) { return f(ctx) }

// loader returns the device loader, or the inventory cache when cached is set.
func (e *env) loader(cached bool) engine.Loader {
	if cached {
		return loaderFunc(func(ctx context.Context) (*inventory.Inventory, error) {
			return e.scanner.GetInventory()
		})
	}
	return e.scanner
}

// newEngine creates an engine and waits for its first load.
func (e *env) newEngine(ctx context.Context, cached bool) (*engine.Engine, error) {
	eng := engine.New(e.loader(cached), e.executor, e.logger)
	if _, err := eng.Reload(ctx); err != nil {
		eng.Close()
		return nil, err
	}

	select {
	case r := <-eng.Loads():
		if _, err := eng.HandleLoad(r); err != nil {
			eng.Close()
			return nil, err
		}
	case <-ctx.Done():
		eng.Close()
		return nil, ctx.Err()
	}
	return eng, nil
}

// criteriaFlags are the filter flags shared by list and apply.
type criteriaFlags struct {
	search string
	status string
	list   string
	tier   string
}

func (f *criteriaFlags) register(flags *pflag.FlagSet) {
	def := inventory.DefaultCriteria()
	flags.StringVar(&f.search, "search", "", "substring of the package name (case-sensitive)")
	flags.StringVar(&f.status, "state", def.Status, "installed, uninstalled or all")
	flags.StringVar(&f.list, "list", def.Category, "list label (google, oem, aosp, carrier, misc, unlisted) or all")
	flags.StringVar(&f.tier, "tier", def.Tier, "removal tier (safe, advanced, expert, unsafe) or all; recommended is an alias of safe")
}

func (f *criteriaFlags) criteria() (inventory.Criteria, error) {
	status, ok := inventory.ParseStatus(f.status)
	if !ok {
		return inventory.Criteria{}, fmt.Errorf("invalid --state value %q: must be one of: installed, uninstalled, all", f.status)
	}
	return inventory.Criteria{
		Search:   f.search,
		Status:   status,
		Category: strings.ToLower(f.list),
		Tier:     inventory.NormalizeTier(f.tier),
	}, nil
}

// unknownPackageError reports a name missing from the inventory, with the
// closest known names as suggestions.
func unknownPackageError(name string, known []string) error {
	suggestions := suggest(name, known, 3)
	if len(suggestions) == 0 {
		return fmt.Errorf("%w: %s\nRun 'droidprune list --state all --tier all' to see every package", inventory.ErrUnknownPackage, name)
	}
	return fmt.Errorf("%w: %s\n\nDid you mean:\n  %s", inventory.ErrUnknownPackage, name, strings.Join(suggestions, "\n  "))
}

// suggest returns up to limit names within a small edit distance of name,
// closest first.
func suggest(name string, known []string, limit int) []string {
	maxDist := len(name) / 4
	if maxDist < 2 {
		maxDist = 2
	}

	type candidate struct {
		name string
		dist int
	}
	var candidates []candidate
	for _, k := range known {
		if d := levenshtein.ComputeDistance(name, k); d <= maxDist {
			candidates = append(candidates, candidate{k, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})

	var out []string
	for i := 0; i < len(candidates) && i < limit; i++ {
		out = append(out, candidates[i].name)
	}
	return out
}

// confirm prompts on stdin and accepts "y" or "yes".
func confirm(out io.Writer, in io.Reader, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// packagesOf returns the packages behind rows.
func packagesOf(rows []inventory.Row) []inventory.Package {
	pkgs := make([]inventory.Package, len(rows))
	for i, r := range rows {
		pkgs[i] = r.Package
	}
	return pkgs
}

func namesOf(pkgs []inventory.Package) []string {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	return names
}
