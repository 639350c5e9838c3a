// Package analyzer computes summaries of a package inventory and of the
// action journal.
package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/store"
)

// Analyzer reads inventories and the action journal.
type Analyzer struct {
	store *store.Store
}

// New creates a new Analyzer instance with the given store.
func New(store *store.Store) *Analyzer {
	return &Analyzer{store: store}
}

// Summarize counts packages per status, tier and list.
func Summarize(inv *inventory.Inventory) *Summary {
	s := &Summary{Categories: make(map[string]int)}

	tiers := append(inventory.Tiers(), inventory.TierUnknown)
	counts := make(map[string]*TierCount, len(tiers))
	for _, t := range tiers {
		tc := &TierCount{Tier: t}
		counts[t] = tc
	}

	for _, p := range inv.Packages() {
		s.Total++
		if p.Category == inventory.DefaultCategory {
			s.Unlisted++
		}

		tc, ok := counts[p.Tier]
		if !ok {
			tc = &TierCount{Tier: p.Tier}
			counts[p.Tier] = tc
			tiers = append(tiers, p.Tier)
		}

		if p.Status == inventory.Installed {
			s.Installed++
			tc.Installed++
			s.Categories[p.Category]++
		} else {
			s.Uninstalled++
			tc.Uninstalled++
		}
	}

	for _, t := range tiers {
		s.Tiers = append(s.Tiers, *counts[t])
	}
	return s
}

// Recommendations returns installed packages of the given tier that may be
// removed, sorted by name.
func Recommendations(inv *inventory.Inventory, tier string) *Recommendation {
	rec := &Recommendation{Packages: []string{}, Tier: tier}
	if !inventory.Allowed(inventory.ActionRemove, tier) {
		return rec
	}

	for _, p := range inv.Packages() {
		if p.Tier == tier && p.Status == inventory.Installed {
			rec.Packages = append(rec.Packages, p.Name)
		}
	}
	sort.Strings(rec.Packages)
	return rec
}

// ValidateRemoval returns warnings for packages that should not be part of
// a removal: unknown names, unsafe packages and packages already removed.
func ValidateRemoval(inv *inventory.Inventory, names []string) []string {
	var warnings []string
	for _, name := range names {
		pkg, ok := inv.Get(name)
		switch {
		case !ok:
			warnings = append(warnings, fmt.Sprintf("%s: package not found on device", name))
		case !inventory.Allowed(inventory.ActionRemove, pkg.Tier):
			warnings = append(warnings, fmt.Sprintf("%s: %s tier, will be skipped", name, pkg.Tier))
		case pkg.Status == inventory.Uninstalled:
			warnings = append(warnings, fmt.Sprintf("%s: already uninstalled, will be restored", name))
		}
	}
	return warnings
}

// Activity summarizes journaled actions recorded since the given time.
func (a *Analyzer) Activity(since time.Time) (*Activity, error) {
	records, err := a.store.ListActions(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read action journal: %w", err)
	}

	act := &Activity{Since: since}
	batches := make(map[string]struct{})
	for _, r := range records {
		if r.CreatedAt.Before(since) {
			continue
		}
		batches[r.BatchID] = struct{}{}
		switch inventory.OutcomeKind(r.Outcome) {
		case inventory.OutcomeApplied:
			act.Applied++
		case inventory.OutcomeFailed:
			act.Failed++
		case inventory.OutcomeSkipped:
			act.Skipped++
		}
		if act.LastAction == nil || r.CreatedAt.After(*act.LastAction) {
			t := r.CreatedAt
			act.LastAction = &t
		}
	}
	act.Batches = len(batches)
	return act, nil
}
