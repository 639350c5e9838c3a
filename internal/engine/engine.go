// Package engine owns the live package state of an interactive session: the
// master inventory, the active criteria, the selection and the visible set.
//
// Every method must be called from a single goroutine. Loads and batch
// actions run in the background and report on Loads() and Actions(); the
// caller hands each result back through HandleLoad or HandleAction, which is
// the only place the inventory is replaced or updated.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

var (
	// ErrBusy is returned when a load or action is requested while a
	// conflicting one is still running.
	ErrBusy = errors.New("another operation is in progress")
	// ErrNothingSelected is returned by Apply when no visible row is selected.
	ErrNothingSelected = errors.New("no visible package is selected")
)

// Loader produces a fresh inventory from the device.
type Loader interface {
	Load(ctx context.Context) (*inventory.Inventory, error)
}

// LoadResult is delivered on Loads() when a background load finishes.
type LoadResult struct {
	Generation uint64
	Inventory  *inventory.Inventory
	Err        error
}

// ActionResult is delivered on Actions() when a background batch finishes.
type ActionResult struct {
	Mode    inventory.Mode
	Pending []inventory.Row
	Report  *inventory.Report
	Err     error // pre-flight failure; the batch did not run
}

// Engine is the single-writer owner of the inventory, criteria and selection.
type Engine struct {
	loader   Loader
	executor *inventory.Executor
	logger   zerolog.Logger

	inv      *inventory.Inventory
	criteria inventory.Criteria
	sel      *inventory.Selection
	visible  []inventory.Row

	generation   uint64
	loading      bool
	acting       bool
	cancelLoad   context.CancelFunc
	cancelAction context.CancelFunc

	loads   chan LoadResult
	actions chan ActionResult
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates an Engine with an empty inventory and default criteria.
func New(loader Loader, executor *inventory.Executor, logger zerolog.Logger) *Engine {
	e := &Engine{
		loader:   loader,
		executor: executor,
		logger:   logger,
		inv:      inventory.New(nil),
		criteria: inventory.DefaultCriteria(),
		sel:      inventory.NewSelection(),
		loads:    make(chan LoadResult, 1),
		actions:  make(chan ActionResult, 1),
		done:     make(chan struct{}),
	}
	e.recompute()
	return e
}

// Loads delivers background load results.
func (e *Engine) Loads() <-chan LoadResult { return e.loads }

// Actions delivers background batch results.
func (e *Engine) Actions() <-chan ActionResult { return e.actions }

// Reload starts a background load. A load already in flight is cancelled and
// its result will be discarded. It returns the generation of the new load.
func (e *Engine) Reload(ctx context.Context) (uint64, error) {
	if e.acting {
		return 0, ErrBusy
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
	}

	e.generation++
	gen := e.generation
	loadCtx, cancel := context.WithCancel(ctx)
	e.cancelLoad = cancel
	e.loading = true

	e.logger.Debug().Uint64("generation", gen).Msg("load started")

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		inv, err := e.loader.Load(loadCtx)
		select {
		case e.loads <- LoadResult{Generation: gen, Inventory: inv, Err: err}:
		case <-e.done:
		}
	}()

	return gen, nil
}

// HandleLoad applies a load result. Results of superseded loads are dropped
// and applied is false. A failed load keeps the previous inventory and returns
// the load error.
func (e *Engine) HandleLoad(r LoadResult) (applied bool, err error) {
	if r.Generation != e.generation {
		e.logger.Debug().Uint64("generation", r.Generation).Msg("stale load discarded")
		return false, nil
	}

	e.loading = false
	e.cancelLoad = nil

	if r.Err != nil {
		return false, fmt.Errorf("failed to load packages: %w", r.Err)
	}

	e.inv = r.Inventory
	if e.inv == nil {
		e.inv = inventory.New(nil)
	}
	e.sel.Clear()
	e.criteria = inventory.DefaultCriteria()
	e.recompute()

	e.logger.Info().Int("packages", e.inv.Len()).Msg("inventory loaded")
	return true, nil
}

// Apply starts a background batch over the visible rows that are selected.
// It returns the number of packages in the batch.
func (e *Engine) Apply(ctx context.Context, mode inventory.Mode) (int, error) {
	if e.acting || e.loading {
		return 0, ErrBusy
	}

	pending := inventory.Pending(e.visible)
	if len(pending) == 0 {
		return 0, ErrNothingSelected
	}

	sel := e.sel.Clone()
	actCtx, cancel := context.WithCancel(ctx)
	e.cancelAction = cancel
	e.acting = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		res := ActionResult{Mode: mode, Pending: pending}
		if err := e.executor.Preflight(actCtx); err != nil {
			res.Err = err
		} else {
			res.Report = e.executor.Apply(actCtx, pending, sel, mode)
		}

		select {
		case e.actions <- res:
		case <-e.done:
		}
	}()

	return len(pending), nil
}

// HandleAction records the statuses reached by a finished batch and
// recomputes the visible set.
func (e *Engine) HandleAction(r ActionResult) error {
	e.acting = false
	e.cancelAction = nil

	if r.Err != nil {
		return r.Err
	}

	changed := e.inv.ApplyReport(r.Report)
	e.recompute()

	e.logger.Debug().Int("changed", changed).Msg("batch recorded")
	return nil
}

// Record applies outcomes produced outside a batch, such as a row action.
func (e *Engine) Record(outcomes ...inventory.Outcome) {
	e.inv.ApplyReport(&inventory.Report{Outcomes: outcomes})
	e.recompute()
}

// Cancel stops any running load or action.
func (e *Engine) Cancel() {
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	if e.cancelAction != nil {
		e.cancelAction()
	}
}

// Close cancels background work and waits for it to exit.
func (e *Engine) Close() {
	e.Cancel()
	close(e.done)
	e.wg.Wait()
}

// Loading reports whether a load is in flight.
func (e *Engine) Loading() bool { return e.loading }

// Acting reports whether a batch is in flight.
func (e *Engine) Acting() bool { return e.acting }

func (e *Engine) recompute() {
	e.visible = inventory.Recompute(e.inv, e.criteria, e.sel)
}
