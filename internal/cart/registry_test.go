package cart

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/metrics"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistryReusesStorePerSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	registry := NewRegistry(RegistryParams{Local: NewMemoryStore(), Remote: newFakeRemote()})
	t.Cleanup(registry.Close)

	a, err := registry.Get(ctx, Session{ID: "s1"})
	require.NoError(t, err)
	b, err := registry.Get(ctx, Session{ID: "s1"})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, StateReady, a.State())

	signedIn, err := registry.Get(ctx, Session{ID: "s1", UserID: "u1"})
	require.NoError(t, err)
	assert.NotSame(t, a, signedIn)
	assert.Equal(t, ModeLocalPlusRemote, signedIn.Mode())
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryEvictsIdleStores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetrics(reg)

	registry := NewRegistry(RegistryParams{
		Local:   NewMemoryStore(),
		Metrics: m,
		IdleTTL: 10 * time.Minute,
		Now:     clock.Now,
	})
	t.Cleanup(registry.Close)

	first, err := registry.Get(ctx, Session{ID: "idle"})
	require.NoError(t, err)
	_, err = first.AddItem(ctx, ink, 1, nil)
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	_, err = registry.Get(ctx, Session{ID: "other"})
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())

	// the evicted session reloads from the local store
	again, err := registry.Get(ctx, Session{ID: "idle"})
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	c, err := again.Cart(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, 2.0, gaugeValue(t, reg, "cart_active_stores"))
}

func TestRegistrySweepEvictsWithoutTraffic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	buf := &bytes.Buffer{}

	registry := NewRegistry(RegistryParams{
		Local:   NewMemoryStore(),
		Logger:  logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: buf}),
		Metrics: metrics.NewCartMetrics(reg),
		IdleTTL: 10 * time.Minute,
		Now:     clock.Now,
	})
	t.Cleanup(registry.Close)

	_, err := registry.Get(ctx, Session{ID: "a"})
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	_, err = registry.Get(ctx, Session{ID: "b"})
	require.NoError(t, err)

	assert.Zero(t, registry.Sweep(ctx))

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, registry.Sweep(ctx))
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1.0, gaugeValue(t, reg, "cart_active_stores"))
	assert.Contains(t, buf.String(), "cart.registry_swept")
	assert.Contains(t, buf.String(), `"active_stores":1`)
}

func TestRegistryRunSweepsUntilClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}

	registry := NewRegistry(RegistryParams{
		Local:         NewMemoryStore(),
		IdleTTL:       time.Minute,
		SweepInterval: 5 * time.Millisecond,
		Now:           clock.Now,
	})

	_, err := registry.Get(ctx, Session{ID: "idle"})
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() { stopped <- registry.Run(ctx) }()

	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool { return registry.Len() == 0 }, time.Second, 5*time.Millisecond)

	registry.Close()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop on Close")
	}
}

func TestRegistryRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(RegistryParams{Local: NewMemoryStore(), IdleTTL: time.Minute})
	t.Cleanup(registry.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, registry.Run(ctx), context.Canceled)

	disabled := NewRegistry(RegistryParams{Local: NewMemoryStore()})
	t.Cleanup(disabled.Close)
	assert.NoError(t, disabled.Run(context.Background()))
}

func TestRegistryCloseDropsStores(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(RegistryParams{Local: NewMemoryStore()})

	_, err := registry.Get(context.Background(), Session{ID: "s1"})
	require.NoError(t, err)
	registry.Close()
	assert.Zero(t, registry.Len())
}

func TestRegistryRejectsEmptySession(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(RegistryParams{Local: NewMemoryStore()})

	_, err := registry.Get(context.Background(), Session{})
	assert.Error(t, err)
	assert.Zero(t, registry.Len())
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
