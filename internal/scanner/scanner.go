// Package scanner loads the package inventory from the device: it queries the
// device gateway, merges the result with the classification catalog and
// caches the inventory in the store.
package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/droidprune/internal/inventory"
	"github.com/blackwell-systems/droidprune/internal/store"
)

// Scanner builds inventories.
type Scanner struct {
	gateway    inventory.Gateway
	classifier inventory.Classifier
	store      *store.Store
	logger     zerolog.Logger

	// cacheMu orders cache writes of overlapping loads.
	cacheMu sync.Mutex

	// Device labels cached scans, e.g. a serial or model name.
	Device string
}

// New creates a Scanner. st may be nil, in which case nothing is cached.
func New(gw inventory.Gateway, classifier inventory.Classifier, st *store.Store, logger zerolog.Logger) *Scanner {
	return &Scanner{
		gateway:    gw,
		classifier: classifier,
		store:      st,
		logger:     logger,
	}
}

// Load fetches the full and the installed package lists concurrently and
// builds a fresh inventory. A failure of either call fails the load.
func (s *Scanner) Load(ctx context.Context) (*inventory.Inventory, error) {
	var all []string
	var installed map[string]struct{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.gateway.ListAllPackages(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		installed, err = s.gateway.ListInstalledPackages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inv := inventory.Build(all, installed, s.classifier)
	s.logger.Debug().Int("packages", inv.Len()).Int("installed", len(installed)).Msg("inventory built")

	if err := s.cache(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// cache writes inv to the store unless ctx was cancelled. A superseded load
// is cancelled before its successor starts, so checking under cacheMu keeps
// it from overwriting a newer cache.
func (s *Scanner) cache(ctx context.Context, inv *inventory.Inventory) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}
	if _, err := s.store.SaveInventory(inv.Packages(), store.Scan{DeviceSerial: s.Device}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache inventory")
	}
	return nil
}

// GetInventory returns the cached inventory without querying the device.
func (s *Scanner) GetInventory() (*inventory.Inventory, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no inventory cache configured")
	}
	packages, err := s.store.ListPackages()
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return inventory.New(packages), nil
}
