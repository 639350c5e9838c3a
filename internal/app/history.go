package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/droidprune/internal/output"
	"github.com/blackwell-systems/droidprune/internal/store"
)

var (
	historyFlagLimit int
	historyFlagBatch string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the journal of applied changes",
	Long: `Show the journaled outcome of every package change droidprune made, newest
first. Use --batch with a batch ID (or its first characters) to see one batch
in the order it ran, including failure details.`,
	Example: `  droidprune history
  droidprune history --limit 100
  droidprune history --batch 9f1c2e7a`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlagLimit, "limit", "n", 20, "number of entries to show (0 for all)")
	historyCmd.Flags().StringVar(&historyFlagBatch, "batch", "", "show one batch by ID or ID prefix")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()

	if historyFlagBatch == "" {
		records, err := e.store.ListActions(historyFlagLimit)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderHistoryTable(records))
		return nil
	}

	batchID, err := resolveBatch(e.store, historyFlagBatch)
	if err != nil {
		return err
	}
	records, err := e.store.GetBatch(batchID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Batch %s\n\n", batchID)
	fmt.Fprint(out, output.RenderHistoryTable(records))

	var failed []*store.ActionRecord
	for _, r := range records {
		if r.Error != "" {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(out, "\nFailures:")
		for _, r := range failed {
			fmt.Fprintf(out, "  %s: %s\n", r.Package, r.Error)
		}
	}
	return nil
}

// resolveBatch expands a batch ID prefix to the full ID. An ambiguous or
// unknown prefix is an error.
func resolveBatch(st *store.Store, prefix string) (string, error) {
	records, err := st.ListActions(0)
	if err != nil {
		return "", err
	}

	var matches []string
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.BatchID] || !strings.HasPrefix(r.BatchID, prefix) {
			continue
		}
		if r.BatchID == prefix {
			return prefix, nil
		}
		seen[r.BatchID] = true
		matches = append(matches, r.BatchID)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no batch matches %q\n\nRun 'droidprune history' to see recent batches", prefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("batch prefix %q is ambiguous: matches %s", prefix, strings.Join(matches, ", "))
}
