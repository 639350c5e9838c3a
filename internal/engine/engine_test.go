package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// fakeLoader returns queued inventories. When gate is set, each Load waits
// for a value on it (or cancellation) before returning.
type fakeLoader struct {
	mu    sync.Mutex
	queue []*inventory.Inventory
	err   error
	gate  chan struct{}
}

func (l *fakeLoader) Load(ctx context.Context) (*inventory.Inventory, error) {
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	inv := l.queue[0]
	if len(l.queue) > 1 {
		l.queue = l.queue[1:]
	}
	return inv, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	fail    map[string]error
	pingErr error
	calls   []string
}

func (g *fakeGateway) ListAllPackages(ctx context.Context) ([]string, error) { return nil, nil }

func (g *fakeGateway) ListInstalledPackages(ctx context.Context) (map[string]struct{}, error) {
	return nil, nil
}

func (g *fakeGateway) Remove(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "remove "+name)
	return g.fail[name]
}

func (g *fakeGateway) Restore(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "restore "+name)
	return g.fail[name]
}

func (g *fakeGateway) Ping(ctx context.Context) error { return g.pingErr }

func sampleInventory() *inventory.Inventory {
	return inventory.New([]inventory.Package{
		{Name: "a.app", Status: inventory.Installed, Tier: inventory.TierSafe, Category: "google"},
		{Name: "b.app", Status: inventory.Uninstalled, Tier: inventory.TierUnsafe, Category: "oem"},
		{Name: "c.app", Status: inventory.Installed, Tier: inventory.TierUnsafe, Category: "aosp"},
		{Name: "d.app", Status: inventory.Installed, Tier: inventory.TierSafe, Category: "oem"},
	})
}

func newTestEngine(t *testing.T, loader Loader, gw inventory.Gateway) *Engine {
	t.Helper()
	e := New(loader, inventory.NewExecutor(gw, zerolog.Nop()), zerolog.Nop())
	t.Cleanup(e.Close)
	return e
}

func waitLoad(t *testing.T, e *Engine) LoadResult {
	t.Helper()
	select {
	case r := <-e.Loads():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for load")
	}
	return LoadResult{}
}

func waitAction(t *testing.T, e *Engine) ActionResult {
	t.Helper()
	select {
	case r := <-e.Actions():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for action")
	}
	return ActionResult{}
}

func names(rows []inventory.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func loaded(t *testing.T, e *Engine) {
	t.Helper()
	_, err := e.Reload(context.Background())
	require.NoError(t, err)
	applied, err := e.HandleLoad(waitLoad(t, e))
	require.NoError(t, err)
	require.True(t, applied)
}

func TestEngine_LoadResetsSelectionAndCriteria(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory(), sampleInventory()}}
	e := newTestEngine(t, loader, &fakeGateway{})

	require.Empty(t, e.Visible())
	loaded(t, e)
	require.Equal(t, []string{"a.app", "d.app"}, names(e.Visible()))

	_, err := e.Toggle("a.app")
	require.NoError(t, err)
	e.SetSearch("d.")
	require.Equal(t, 1, e.SelectedCount())

	loaded(t, e)
	require.Equal(t, 0, e.SelectedCount())
	require.Equal(t, inventory.DefaultCriteria(), e.Criteria())
}

func TestEngine_StaleLoadDiscarded(t *testing.T) {
	older := inventory.New([]inventory.Package{{Name: "old.app", Status: inventory.Installed, Tier: inventory.TierSafe}})
	newer := inventory.New([]inventory.Package{{Name: "new.app", Status: inventory.Installed, Tier: inventory.TierSafe}})
	loader := &fakeLoader{queue: []*inventory.Inventory{older, newer}}
	e := newTestEngine(t, loader, &fakeGateway{})

	first, err := e.Reload(context.Background())
	require.NoError(t, err)
	firstResult := waitLoad(t, e)

	second, err := e.Reload(context.Background())
	require.NoError(t, err)
	require.Greater(t, second, first)

	applied, err := e.HandleLoad(firstResult)
	require.NoError(t, err)
	require.False(t, applied)
	require.True(t, e.Loading())

	applied, err = e.HandleLoad(waitLoad(t, e))
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, []string{"new.app"}, names(e.Visible()))
}

func TestEngine_SupersededLoadIsCancelled(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}, gate: make(chan struct{})}
	e := newTestEngine(t, loader, &fakeGateway{})

	_, err := e.Reload(context.Background())
	require.NoError(t, err)
	_, err = e.Reload(context.Background())
	require.NoError(t, err)

	// The first load observes cancellation and reports a stale result.
	stale := waitLoad(t, e)
	require.ErrorIs(t, stale.Err, context.Canceled)
	applied, err := e.HandleLoad(stale)
	require.NoError(t, err)
	require.False(t, applied)

	loader.gate <- struct{}{}
	applied, err = e.HandleLoad(waitLoad(t, e))
	require.NoError(t, err)
	require.True(t, applied)
}

func TestEngine_FailedLoadKeepsInventory(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	e := newTestEngine(t, loader, &fakeGateway{})
	loaded(t, e)

	loader.err = inventory.ErrGatewayUnavailable
	_, err := e.Reload(context.Background())
	require.NoError(t, err)
	applied, err := e.HandleLoad(waitLoad(t, e))
	require.ErrorIs(t, err, inventory.ErrGatewayUnavailable)
	require.False(t, applied)
	require.False(t, e.Loading())
	require.Equal(t, []string{"a.app", "d.app"}, names(e.Visible()))
}

func TestEngine_FiltersWhileLoading(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	e := newTestEngine(t, loader, &fakeGateway{})
	loaded(t, e)

	loader.gate = make(chan struct{})
	_, err := e.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, e.SetStatus("all"))
	e.SetTier(inventory.All)
	require.Equal(t, []string{"a.app", "b.app", "c.app", "d.app"}, names(e.Visible()))

	require.Error(t, e.SetStatus("broken"))

	_, err = e.Apply(context.Background(), inventory.ModeAuto)
	require.ErrorIs(t, err, ErrBusy)

	loader.gate <- struct{}{}
	_, err = e.HandleLoad(waitLoad(t, e))
	require.NoError(t, err)
}

func TestEngine_ApplyConcreteScenario(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	gw := &fakeGateway{}
	e := newTestEngine(t, loader, gw)
	loaded(t, e)

	e.SetTier(inventory.All)
	e.SetSearch("")
	require.Equal(t, []string{"a.app", "c.app", "d.app"}, names(e.Visible()))

	_, err := e.Toggle("a.app")
	require.NoError(t, err)
	_, err = e.Toggle("c.app")
	require.NoError(t, err)
	require.Equal(t, 2, e.PendingCount())

	n, err := e.Apply(context.Background(), inventory.ModeAuto)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, e.Acting())

	_, err = e.Reload(context.Background())
	require.ErrorIs(t, err, ErrBusy)

	result := waitAction(t, e)
	require.NoError(t, e.HandleAction(result))
	require.False(t, e.Acting())

	require.Equal(t, []string{"remove a.app"}, gw.calls)
	a, _ := e.Package("a.app")
	require.Equal(t, inventory.Uninstalled, a.Status)
	c, _ := e.Package("c.app")
	require.Equal(t, inventory.Installed, c.Status)

	// a.app no longer matches the installed filter.
	require.Equal(t, []string{"c.app", "d.app"}, names(e.Visible()))
	require.Equal(t, 1, result.Report.Count(inventory.OutcomeSkipped))
}

func TestEngine_ApplyOnlyVisibleSelection(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	gw := &fakeGateway{}
	e := newTestEngine(t, loader, gw)
	loaded(t, e)

	e.SelectAllVisible()
	require.Equal(t, 2, e.SelectedCount())

	e.SetCategory("oem")
	require.Equal(t, []string{"a.app"}, e.HiddenSelections())

	_, err := e.Apply(context.Background(), inventory.ModeAuto)
	require.NoError(t, err)
	require.NoError(t, e.HandleAction(waitAction(t, e)))

	require.Equal(t, []string{"remove d.app"}, gw.calls)
	a, _ := e.Package("a.app")
	require.Equal(t, inventory.Installed, a.Status)
	require.Equal(t, 2, e.SelectedCount())
}

func TestEngine_ApplyPreflightFailure(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	gw := &fakeGateway{pingErr: errors.New("device offline")}
	e := newTestEngine(t, loader, gw)
	loaded(t, e)

	e.SelectAllVisible()
	_, err := e.Apply(context.Background(), inventory.ModeAuto)
	require.NoError(t, err)

	err = e.HandleAction(waitAction(t, e))
	require.ErrorIs(t, err, inventory.ErrGatewayUnavailable)
	require.Empty(t, gw.calls)
	require.False(t, e.Acting())

	a, _ := e.Package("a.app")
	require.Equal(t, inventory.Installed, a.Status)
}

func TestEngine_ApplyNothingSelected(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	e := newTestEngine(t, loader, &fakeGateway{})
	loaded(t, e)

	_, err := e.Apply(context.Background(), inventory.ModeAuto)
	require.ErrorIs(t, err, ErrNothingSelected)
	require.False(t, e.Acting())
}

func TestEngine_ToggleUnknownPackage(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	e := newTestEngine(t, loader, &fakeGateway{})
	loaded(t, e)

	_, err := e.Toggle("missing.app")
	require.ErrorIs(t, err, inventory.ErrUnknownPackage)
}

func TestEngine_SelectionSurvivesFilterRoundTrip(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	e := newTestEngine(t, loader, &fakeGateway{})
	loaded(t, e)

	_, err := e.Toggle("d.app")
	require.NoError(t, err)

	e.SetSearch("a.app")
	require.Equal(t, []string{"a.app"}, names(e.Visible()))

	e.SetSearch("")
	for _, r := range e.Visible() {
		require.Equal(t, r.Name == "d.app", r.Selected, r.Name)
	}
}

func TestEngine_Record(t *testing.T) {
	loader := &fakeLoader{queue: []*inventory.Inventory{sampleInventory()}}
	e := newTestEngine(t, loader, &fakeGateway{})
	loaded(t, e)

	e.Record(inventory.Outcome{Name: "d.app", From: inventory.Installed, To: inventory.Uninstalled, Kind: inventory.OutcomeApplied})
	require.Equal(t, []string{"a.app"}, names(e.Visible()))
}
