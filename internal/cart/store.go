package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/airink/storefront-backend/pkg/errors"
	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/metrics"
)

// State is the lifecycle of a Store.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Session identifies the shopper. UserID is empty for guests.
type Session struct {
	ID     string
	UserID string
}

// Authenticated reports whether a user identifier is present.
func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.UserID) != ""
}

const (
	opLoad         = "load"
	opAddItem      = "add_item"
	opUpdateItem   = "update_item_quantity"
	opRemoveItem   = "remove_item"
	opClear        = "clear_cart"
	opApplyCoupon  = "apply_coupon"
	opRemoveCoupon = "remove_coupon"
)

// MaxLineQuantity bounds a single line, including merged additions.
const MaxLineQuantity = 999

var errQuantityTooLarge = pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at most %d", MaxLineQuantity))

// StoreParams wires a Store.
type StoreParams struct {
	Session Session
	Backend Backend
	Pricing Pricing
	Coupons *CouponResolver
	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
	Now     func() time.Time
}

// Store owns the authoritative in-memory cart for one session. Mutations are
// serialized so concurrent calls never read stale state.
type Store struct {
	session Session
	backend Backend
	pricing Pricing
	coupons *CouponResolver
	logg    *logger.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time

	mu    sync.Mutex
	state atomic.Int32
	cart  *Cart

	watchMu     sync.Mutex
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// NewStore builds an uninitialized store; the first operation loads it.
func NewStore(p StoreParams) (*Store, error) {
	if p.Backend == nil {
		return nil, fmt.Errorf("cart backend required")
	}
	if strings.TrimSpace(p.Session.ID) == "" {
		return nil, fmt.Errorf("session id required")
	}
	if p.Coupons == nil {
		p.Coupons = NewCouponResolver(nil, DefaultFallbackTable())
	}
	if p.Pricing == (Pricing{}) {
		p.Pricing = DefaultPricing()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	s := &Store{
		session: p.Session,
		backend: p.Backend,
		pricing: p.Pricing,
		coupons: p.Coupons,
		logg:    p.Logger,
		metrics: p.Metrics,
		now:     p.Now,
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	return State(s.state.Load())
}

// Mode reports which persistence strategy backs the store.
func (s *Store) Mode() string {
	return s.backend.Mode()
}

// Load resolves the initial cart. It is idempotent once the store is ready.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) (err error) {
	if s.State() == StateReady {
		return nil
	}
	started := s.now()
	defer func() { s.metrics.Observe(opLoad, started, err) }()

	s.state.Store(int32(StateLoading))
	loaded, err := s.backend.Load(ctx)
	if err != nil {
		s.state.Store(int32(StateUninitialized))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if loaded == nil {
		loaded = Empty()
	}
	s.pricing.Recalculate(loaded)
	s.cart = loaded
	s.state.Store(int32(StateReady))

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"mode": s.backend.Mode(), "items": len(loaded.Items)})
		s.logg.Debug(ctx, "cart.loaded")
	}
	s.startWatch(ctx)
	return nil
}

// Cart returns a snapshot of the current cart.
func (s *Store) Cart(ctx context.Context) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	return s.cart.Clone(), nil
}

// AddItem adds quantity units of product (optionally a variant). Lines merge
// on exact (product, variant) identity. A zero quantity means one.
func (s *Store) AddItem(ctx context.Context, product Product, quantity int, variant *Variant) (*Cart, error) {
	if quantity == 0 {
		quantity = 1
	}
	if err := validateProduct(product, quantity); err != nil {
		s.metrics.Observe(opAddItem, s.now(), err)
		return nil, err
	}

	variantID, variantName := "", ""
	if variant != nil {
		variantID = strings.TrimSpace(variant.ID)
		variantName = variant.Name
	}
	id := ItemID(product.ID, variantID)

	return s.mutate(ctx, opAddItem, func(c *Cart) (bool, error) {
		if idx := c.indexOf(id); idx >= 0 {
			if c.Items[idx].Quantity > MaxLineQuantity-quantity {
				return false, errQuantityTooLarge
			}
			c.Items[idx].Quantity += quantity
			return true, nil
		}
		c.Items = append(c.Items, Item{
			ID:          id,
			ProductID:   strings.TrimSpace(product.ID),
			VariantID:   variantID,
			VariantName: variantName,
			Name:        product.Name,
			Price:       product.Price,
			Quantity:    quantity,
			Image:       product.Image,
		})
		return true, nil
	})
}

// UpdateItemQuantity overwrites a line's quantity. Quantities below one remove
// the line; unknown item ids leave the cart unchanged.
func (s *Store) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return s.RemoveItem(ctx, itemID)
	}
	if quantity > MaxLineQuantity {
		s.metrics.Observe(opUpdateItem, s.now(), errQuantityTooLarge)
		return nil, errQuantityTooLarge
	}
	return s.mutate(ctx, opUpdateItem, func(c *Cart) (bool, error) {
		idx := c.indexOf(itemID)
		if idx < 0 || c.Items[idx].Quantity == quantity {
			return false, nil
		}
		c.Items[idx].Quantity = quantity
		return true, nil
	})
}

// RemoveItem drops a line. Removing an absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, itemID string) (*Cart, error) {
	return s.mutate(ctx, opRemoveItem, func(c *Cart) (bool, error) {
		idx := c.indexOf(itemID)
		if idx < 0 {
			return false, nil
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true, nil
	})
}

// ClearCart resets to the empty default and persists it.
func (s *Store) ClearCart(ctx context.Context) (*Cart, error) {
	return s.mutate(ctx, opClear, func(c *Cart) (bool, error) {
		*c = *Empty()
		return true, nil
	})
}

// ApplyCoupon validates code and stores its terms on the cart. Invalid codes
// return ErrInvalidCoupon and leave the cart untouched.
func (s *Store) ApplyCoupon(ctx context.Context, code string) (*Cart, error) {
	coupon, err := s.coupons.Resolve(ctx, code)
	if err != nil {
		s.metrics.Observe(opApplyCoupon, s.now(), err)
		return nil, err
	}
	applied := coupon.Applied()
	return s.mutate(ctx, opApplyCoupon, func(c *Cart) (bool, error) {
		c.Coupon = applied
		return true, nil
	})
}

// RemoveCoupon clears the coupon and its discount.
func (s *Store) RemoveCoupon(ctx context.Context) (*Cart, error) {
	return s.mutate(ctx, opRemoveCoupon, func(c *Cart) (bool, error) {
		if c.Coupon == nil {
			return false, nil
		}
		c.Coupon = nil
		return true, nil
	})
}

// mutate applies fn to a copy of the cart, recomputes totals and persists the
// result before it becomes visible. Unchanged carts are returned as-is.
func (s *Store) mutate(ctx context.Context, op string, fn func(c *Cart) (bool, error)) (result *Cart, err error) {
	started := s.now()
	defer func() { s.metrics.Observe(op, started, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}

	next := s.cart.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return s.cart.Clone(), nil
	}

	s.pricing.Recalculate(next)
	next.UpdatedAt = s.now().UTC()

	if err := s.backend.Save(ctx, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	s.cart = next
	return next.Clone(), nil
}

func validateProduct(p Product, quantity int) error {
	if strings.TrimSpace(p.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if p.Price < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product price must be non-negative")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if quantity > MaxLineQuantity {
		return errQuantityTooLarge
	}
	return nil
}

// startWatch subscribes to remote updates for the lifetime of the store.
// It is detached from ctx so the subscription outlives the loading request.
func (s *Store) startWatch(ctx context.Context) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.cancelWatch != nil {
		return
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	updates, err := s.backend.Watch(watchCtx)
	if err != nil || updates == nil {
		cancel()
		return
	}
	s.cancelWatch = cancel
	s.watchDone = make(chan struct{})

	go func() {
		defer close(s.watchDone)
		for {
			select {
			case <-watchCtx.Done():
				return
			case doc, ok := <-updates:
				if !ok {
					return
				}
				s.applyRemote(watchCtx, doc)
			}
		}
	}()
}

// applyRemote adopts a document written elsewhere (another tab or device)
// when it is newer than the in-memory cart. Echoes of our own writes carry the
// same timestamp and are ignored.
func (s *Store) applyRemote(ctx context.Context, doc *Cart) {
	if doc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart != nil && !doc.UpdatedAt.After(s.cart.UpdatedAt) {
		return
	}
	next := doc.Clone()
	s.pricing.Recalculate(next)
	s.cart = next

	if s.logg != nil {
		s.logg.Debug(s.logg.WithField(ctx, "items", len(next.Items)), "cart.remote_update_applied")
	}
}

// Close stops the remote subscription, if any.
func (s *Store) Close() {
	s.watchMu.Lock()
	cancel, done := s.cancelWatch, s.watchDone
	s.cancelWatch, s.watchDone = nil, nil
	s.watchMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
