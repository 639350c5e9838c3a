package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/catalog"
	"github.com/blackwell-systems/droidprune/internal/engine"
	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/output"
	"github.com/blackwell-systems/droidprune/internal/scanner"
	"github.com/blackwell-systems/droidprune/internal/watcher"
)

const sessionPrompt = "droidprune> "

var (
	sessionFlagNoWatch    bool
	sessionFlagNoSnapshot bool

	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Filter, select and apply interactively",
		Long: `Start an interactive session on the device inventory.

Filters narrow the visible packages; the selection survives filter changes.
'apply' changes the selected packages that are visible, in the background,
while you keep browsing. A reload (or a change to the classification list
file) resets the filters and the selection.

Type 'help' in the session for the command list.`,
		Example: `  droidprune session
  echo "tier safe
select-all
apply" | droidprune session`,
		Args: cobra.NoArgs,
		RunE: runSession,
	}
)

func init() {
	sessionCmd.Flags().BoolVar(&sessionFlagNoWatch, "no-watch", false, "do not reload when the classification list changes")
	sessionCmd.Flags().BoolVar(&sessionFlagNoSnapshot, "no-snapshot", false, "skip snapshots before batches")

	RootCmd.AddCommand(sessionCmd)
}

const sessionHelp = `Commands:
  view                      show the visible packages
  count                     show the filters and selection counts
  search [text]             filter by package name (no text clears)
  state <status|all>        installed, uninstalled or all
  list <list|all>           classification list, e.g. google, oem, unlisted
  tier <tier|all>           safe (or recommended), advanced, expert, unsafe
  toggle <package>...       flip the selection of packages
  select-all                select every visible package
  pending                   show what apply would change
  apply [auto|remove|restore]
                            change the visible selected packages
  show <package>            describe one package
  reload                    read the device again (resets filters and selection)
  cancel                    stop the running load or batch
  help                      show this help
  quit                      leave the session
`

// session is one interactive run. All fields are owned by the goroutine
// that calls run.
type session struct {
	env *env
	eng *engine.Engine
	out io.Writer

	changes  <-chan watcher.Event
	progress chan inventory.Outcome
	bar      *output.BatchProgress

	snapshotID    int64
	reloadPending bool
	quitting      bool
}

func runSession(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	s := &session{env: e, out: cmd.OutOrStdout()}
	s.eng = engine.New(e.loader(false), e.executor, e.logger)
	defer s.eng.Close()

	e.executor.OnOutcome(s.observe)

	if !sessionFlagNoWatch {
		w, err := watcher.New(e.cfg.Catalog, e.logger)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			e.logger.Warn().Err(err).Msg("classification list will not be watched")
		} else {
			defer w.Stop()
			s.changes = w.Changes()
		}
	}

	return s.run(cmd.Context(), cmd.InOrStdin())
}

// readLines feeds lines of in to the returned channel until EOF or done.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	fmt.Fprintln(s.out, "Reading packages from the device...")
	if _, err := s.eng.Reload(ctx); err != nil {
		return err
	}

	for {
		// Input waits while a load is in flight so that commands apply to
		// the inventory they were typed against.
		var input <-chan string
		if !s.eng.Loading() && !s.quitting {
			input = lines
		}

		select {
		case line, ok := <-input:
			if !ok {
				lines = nil
				s.quitting = true
				break
			}
			if s.exec(ctx, line) {
				s.quitting = true
				if s.eng.Acting() {
					fmt.Fprintln(s.out, "Waiting for the running batch to finish...")
				}
				break
			}
			fmt.Fprint(s.out, sessionPrompt)

		case r := <-s.eng.Loads():
			applied, err := s.eng.HandleLoad(r)
			if err != nil {
				fmt.Fprintf(s.out, "✗ %v\n", err)
			} else if applied {
				fmt.Fprintf(s.out, "%d packages loaded.\n", len(s.eng.Packages()))
				s.printCount()
			}
			if !s.eng.Loading() && !s.quitting {
				fmt.Fprint(s.out, sessionPrompt)
			}

		case r := <-s.eng.Actions():
			s.finishBatch(r)
			if s.reloadPending {
				s.reloadPending = false
				s.reload(ctx)
			}

		case o := <-s.progress:
			s.bar.Observe(o)

		case ev := <-s.changes:
			s.catalogChanged(ctx, ev)

		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return ctx.Err()
		}

		if s.quitting && !s.eng.Loading() && !s.eng.Acting() {
			return nil
		}
	}
}

// observe runs on the batch goroutine and forwards outcomes to the session
// loop. The channel is sized for the whole batch, so the send never blocks.
func (s *session) observe(o inventory.Outcome) {
	select {
	case s.progress <- o:
	default:
	}
}

// exec runs one command line and reports whether the session should end.
func (s *session) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprint(s.out, sessionHelp)
	case "view", "ls":
		fmt.Fprint(s.out, output.RenderPackageTable(s.eng.Visible()))
		s.printCount()
	case "count":
		s.printCount()
	case "search":
		s.eng.SetSearch(strings.Join(args, " "))
		s.printCount()
	case "state", "status":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: state <installed|uninstalled|all>")
			break
		}
		if err := s.eng.SetStatus(strings.ToLower(args[0])); err != nil {
			fmt.Fprintf(s.out, "✗ %v\n", err)
			break
		}
		s.printCount()
	case "list":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: list <list|all>")
			if known := s.env.catalog.Categories(); len(known) > 0 {
				fmt.Fprintf(s.out, "lists: %s\n", strings.Join(known, ", "))
			}
			break
		}
		s.eng.SetCategory(strings.ToLower(args[0]))
		s.printCount()
	case "tier":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: tier <tier|all>")
			if known := s.env.catalog.Tiers(); len(known) > 0 {
				fmt.Fprintf(s.out, "tiers in use: %s\n", strings.Join(known, ", "))
			}
			break
		}
		s.eng.SetTier(strings.ToLower(args[0]))
		s.printCount()
	case "toggle", "t":
		s.toggle(args)
	case "select-all", "all":
		s.eng.SelectAllVisible()
		s.printCount()
	case "pending":
		s.printPending(inventory.ModeAuto)
	case "apply":
		mode := inventory.ModeAuto
		if len(args) > 0 {
			m, err := inventory.ParseMode(args[0])
			if err != nil {
				fmt.Fprintf(s.out, "✗ %v\n", err)
				break
			}
			mode = m
		}
		s.apply(ctx, mode)
	case "show", "explain":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: show <package>")
			break
		}
		s.show(args[0])
	case "reload":
		s.reload(ctx)
	case "cancel":
		if !s.eng.Loading() && !s.eng.Acting() {
			fmt.Fprintln(s.out, "Nothing to cancel.")
			break
		}
		s.eng.Cancel()
		fmt.Fprintln(s.out, "Cancelling...")
	default:
		fmt.Fprintf(s.out, "unknown command %q, type 'help' for the command list\n", name)
	}
	return false
}

func (s *session) toggle(names []string) {
	if len(names) == 0 {
		fmt.Fprintln(s.out, "usage: toggle <package>...")
		return
	}
	for _, name := range names {
		selected, err := s.eng.Toggle(name)
		if errors.Is(err, inventory.ErrUnknownPackage) {
			fmt.Fprintf(s.out, "✗ %v\n", unknownPackageError(name, namesOf(s.eng.Packages())))
			continue
		}
		if err != nil {
			fmt.Fprintf(s.out, "✗ %v\n", err)
			continue
		}

		mark := "-"
		if selected {
			mark = "+"
		}
		hidden := ""
		if selected && !s.isVisible(name) {
			hidden = " (hidden by the filters)"
		}
		fmt.Fprintf(s.out, "%s %s%s\n", mark, name, hidden)
	}
	s.printCount()
}

func (s *session) isVisible(name string) bool {
	for _, r := range s.eng.Visible() {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (s *session) printPending(mode inventory.Mode) []inventory.Row {
	pending := inventory.Pending(s.eng.Visible())
	printBatchWarnings(s.out, s.env, inventory.New(s.eng.Packages()), pending, s.eng.HiddenSelections(), mode)
	if len(pending) == 0 {
		fmt.Fprintln(s.out, "No visible package is selected.")
		return nil
	}
	fmt.Fprint(s.out, output.RenderPackageTable(pending))
	fmt.Fprintf(s.out, "\nSummary: %s\n", planBatch(pending, mode))
	return pending
}

func (s *session) apply(ctx context.Context, mode inventory.Mode) {
	if s.eng.Loading() || s.eng.Acting() {
		fmt.Fprintf(s.out, "✗ %v\n", engine.ErrBusy)
		return
	}
	pending := s.printPending(mode)
	if len(pending) == 0 {
		return
	}

	s.snapshotID = 0
	if !sessionFlagNoSnapshot {
		id, err := s.env.snapshotBefore(packagesOf(pending), fmt.Sprintf("before session apply (%s)", mode))
		if err != nil {
			fmt.Fprintf(s.out, "✗ %v\n", err)
			return
		}
		s.snapshotID = id
	}

	s.progress = make(chan inventory.Outcome, len(pending))
	s.bar = output.NewBatchProgress(len(pending))
	s.bar.SetWriter(s.out)

	n, err := s.eng.Apply(ctx, mode)
	if err != nil {
		fmt.Fprintf(s.out, "✗ %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Applying %d package(s) in the background...\n", n)
}

func (s *session) finishBatch(r engine.ActionResult) {
	for drained := false; !drained; {
		select {
		case o := <-s.progress:
			s.bar.Observe(o)
		default:
			drained = true
		}
	}
	if s.bar != nil {
		s.bar.Finish()
	}
	s.progress, s.bar = nil, nil

	if err := s.eng.HandleAction(r); err != nil {
		fmt.Fprintf(s.out, "✗ batch not started: %v\n", err)
		return
	}

	batchID := s.env.journal(r.Report)
	printBatchResult(s.out, r.Report, batchID, s.snapshotID)
	if !s.quitting {
		fmt.Fprint(s.out, sessionPrompt)
	}
}

func (s *session) show(name string) {
	pkg, ok := s.eng.Package(name)
	if !ok {
		fmt.Fprintf(s.out, "✗ %v\n", unknownPackageError(name, namesOf(s.eng.Packages())))
		return
	}
	var entry *catalog.Entry
	if en, ok := s.env.catalog.Entry(name); ok {
		entry = &en
	}
	dependents := scanner.InstalledDependents(inventory.New(s.eng.Packages()), s.env.catalog, name)
	fmt.Fprint(s.out, output.RenderPackageDetail(pkg, entry, dependents))
}

func (s *session) reload(ctx context.Context) {
	if _, err := s.eng.Reload(ctx); err != nil {
		fmt.Fprintf(s.out, "✗ %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Reading packages from the device...")
}

// catalogChanged re-reads the classification list and reloads the
// inventory with it. A reload during a batch waits for the batch.
func (s *session) catalogChanged(ctx context.Context, ev watcher.Event) {
	if err := s.env.catalog.Reload(); err != nil {
		s.env.logger.Warn().Err(err).Str("path", ev.Path).Msg("classification list changed but could not be read")
		return
	}
	fmt.Fprintf(s.out, "\nClassification list changed (%d entries).\n", s.env.catalog.Len())
	if s.eng.Acting() {
		s.reloadPending = true
		return
	}
	s.reload(ctx)
}

func (s *session) printCount() {
	c := s.eng.Criteria()
	search := ""
	if c.Search != "" {
		search = fmt.Sprintf("search=%q ", c.Search)
	}
	fmt.Fprintf(s.out, "[%sstate=%s list=%s tier=%s] ", search, c.Status, c.Category, c.Tier)
	fmt.Fprint(s.out, output.RenderCountLine(len(s.eng.Visible()), s.eng.PendingCount(), s.eng.SelectedCount()))
}
