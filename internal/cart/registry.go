package cart

import (
	"context"
	"sync"
	"time"

	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/metrics"
)

// RegistryParams wires the shared collaborators handed to every Store.
type RegistryParams struct {
	Local   LocalStore
	Remote  RemoteStore
	Coupons *CouponResolver
	Pricing Pricing
	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
	// IdleTTL evicts stores not touched for this long. Zero disables eviction.
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
}

const defaultSweepInterval = time.Minute

type registryEntry struct {
	store    *Store
	lastUsed time.Time
}

// Registry hands out one Store per (session, user) pair so every request of a
// session shares the same serialized cart.
type Registry struct {
	params RegistryParams
	now    func() time.Time

	mu     sync.Mutex
	stores map[string]*registryEntry

	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry builds an empty registry.
func NewRegistry(p RegistryParams) *Registry {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	if p.Coupons == nil {
		p.Coupons = NewCouponResolver(nil, DefaultFallbackTable())
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = defaultSweepInterval
	}
	return &Registry{
		params: p,
		now:    now,
		stores: map[string]*registryEntry{},
		done:   make(chan struct{}),
	}
}

// Run sweeps idle stores every SweepInterval until ctx is canceled or the
// registry is closed. It returns immediately when eviction is disabled.
func (r *Registry) Run(ctx context.Context) error {
	if r.params.IdleTTL <= 0 {
		return nil
	}
	ticker := time.NewTicker(r.params.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep evicts stores idle longer than IdleTTL and reports how many it dropped.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	evicted := r.evictIdleLocked(r.now())
	r.mu.Unlock()

	if len(evicted) == 0 {
		return 0
	}
	closeStores(evicted)
	logCtx := r.params.Logger.WithFields(ctx, map[string]any{
		"evicted":       len(evicted),
		"active_stores": r.Len(),
	})
	r.params.Logger.Info(logCtx, "cart.registry_swept")
	return len(evicted)
}

func registryKey(s Session) string {
	return s.ID + "|" + s.UserID
}

// Get returns the loaded store for session, creating it on first use.
func (r *Registry) Get(ctx context.Context, session Session) (*Store, error) {
	store, err := r.acquire(session)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (r *Registry) acquire(session Session) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := r.evictIdleLocked(now)
	defer closeStores(evicted)

	key := registryKey(session)
	if entry, ok := r.stores[key]; ok {
		entry.lastUsed = now
		return entry.store, nil
	}

	backend, err := NewBackend(BackendParams{
		Session: session,
		Local:   r.params.Local,
		Remote:  r.params.Remote,
		Logger:  r.params.Logger,
		Metrics: r.params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	store, err := NewStore(StoreParams{
		Session: session,
		Backend: backend,
		Pricing: r.params.Pricing,
		Coupons: r.params.Coupons,
		Logger:  r.params.Logger,
		Metrics: r.params.Metrics,
		Now:     r.params.Now,
	})
	if err != nil {
		return nil, err
	}
	r.stores[key] = &registryEntry{store: store, lastUsed: now}
	r.params.Metrics.SetActiveStores(len(r.stores))
	return store, nil
}

func (r *Registry) evictIdleLocked(now time.Time) []*Store {
	if r.params.IdleTTL <= 0 {
		return nil
	}
	var evicted []*Store
	for key, entry := range r.stores {
		if now.Sub(entry.lastUsed) > r.params.IdleTTL {
			evicted = append(evicted, entry.store)
			delete(r.stores, key)
		}
	}
	if len(evicted) > 0 {
		r.params.Metrics.SetActiveStores(len(r.stores))
	}
	return evicted
}

// Len reports how many stores are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close stops the sweep loop and releases every store and its remote
// subscription.
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, entry := range r.stores {
		stores = append(stores, entry.store)
	}
	r.stores = map[string]*registryEntry{}
	r.mu.Unlock()

	closeStores(stores)
	r.params.Metrics.SetActiveStores(0)
}

func closeStores(stores []*Store) {
	for _, s := range stores {
		s.Close()
	}
}
