package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/airink/storefront-backend/pkg/errors"
)

type fakeRemote struct {
	mu      sync.Mutex
	docs    map[string]*Cart
	getErr  error
	putErr  error
	puts    int
	updates chan *Cart
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: map[string]*Cart{}}
}

func (f *fakeRemote) Get(_ context.Context, userID string) (*Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[userID]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (f *fakeRemote) Put(_ context.Context, userID string, c *Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.docs[userID] = c.Clone()
	return nil
}

func (f *fakeRemote) Watch(context.Context, string) (<-chan *Cart, error) {
	if f.updates == nil {
		return nil, nil
	}
	return f.updates, nil
}

func (f *fakeRemote) doc(userID string) *Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[userID]
}

type failingLocal struct {
	*MemoryStore
	putErr error
}

func (f *failingLocal) Put(context.Context, string, *Cart) error {
	return f.putErr
}

func newTestStore(t *testing.T, session Session, local LocalStore, remote RemoteStore) *Store {
	t.Helper()
	if local == nil {
		local = NewMemoryStore()
	}
	backend, err := NewBackend(BackendParams{Session: session, Local: local, Remote: remote})
	require.NoError(t, err)
	store, err := NewStore(StoreParams{Session: session, Backend: backend})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

var (
	ink   = Product{ID: "ink-01", Name: "Eco Ink", Price: 12.5}
	paper = Product{ID: "paper-a4", Name: "Recycled Paper", Price: 8}
)

func TestStoreLoadsLazily(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Session{ID: "s1"}, nil, nil)
	assert.Equal(t, StateUninitialized, store.State())

	c, err := store.Cart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, store.State())
	assert.Empty(t, c.Items)
	assert.Equal(t, ModeLocalOnly, store.Mode())
}

func TestAddItemMergesSameProduct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	_, err := store.AddItem(ctx, ink, 2, nil)
	require.NoError(t, err)
	c, err := store.AddItem(ctx, ink, 3, nil)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 62.5, c.Subtotal)
	assertTotalsConsistent(t, c)
}

func TestAddItemKeepsVariantsApart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	_, err := store.AddItem(ctx, ink, 1, &Variant{ID: "black", Name: "Black"})
	require.NoError(t, err)
	_, err = store.AddItem(ctx, ink, 1, &Variant{ID: "cyan", Name: "Cyan"})
	require.NoError(t, err)
	c, err := store.AddItem(ctx, ink, 1, nil)
	require.NoError(t, err)

	require.Len(t, c.Items, 3)
	assert.Equal(t, "ink-01:black", c.Items[0].ID)
	assert.Equal(t, "Black", c.Items[0].VariantName)
	assert.Equal(t, "ink-01:cyan", c.Items[1].ID)
	assert.Equal(t, "ink-01", c.Items[2].ID)
}

func TestAddItemDefaultsQuantityAndValidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	c, err := store.AddItem(ctx, paper, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)

	_, err = store.AddItem(ctx, Product{Name: "no id", Price: 1}, 1, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = store.AddItem(ctx, paper, -2, nil)
	require.Error(t, err)

	c, err = store.Cart(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
}

func TestUpdateItemQuantity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	_, err := store.AddItem(ctx, ink, 1, nil)
	require.NoError(t, err)

	c, err := store.UpdateItemQuantity(ctx, "ink-01", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.Equal(t, 50.0, c.Subtotal)
	assert.Equal(t, 5.99, c.Shipping)

	c, err = store.UpdateItemQuantity(ctx, "ink-01", 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, c.Total)
}

func TestMergedQuantityIsCapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	_, err := store.AddItem(ctx, ink, math.MaxInt, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = store.AddItem(ctx, ink, MaxLineQuantity, nil)
	require.NoError(t, err)

	_, err = store.AddItem(ctx, ink, 2, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	c, err := store.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, MaxLineQuantity, c.Items[0].Quantity)
}

func TestUpdateItemQuantityRejectsOversizedLine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	_, err := store.AddItem(ctx, paper, 3, nil)
	require.NoError(t, err)

	_, err = store.UpdateItemQuantity(ctx, "paper-a4", MaxLineQuantity+1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	c, err := store.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Items[0].Quantity)
}

func TestUnknownItemIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	before, err := store.AddItem(ctx, ink, 2, nil)
	require.NoError(t, err)

	after, err := store.RemoveItem(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	after, err = store.UpdateItemQuantity(ctx, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClearCartResetsEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := NewMemoryStore()
	store := newTestStore(t, Session{ID: "s1"}, local, nil)

	_, err := store.AddItem(ctx, ink, 3, nil)
	require.NoError(t, err)
	_, err = store.ApplyCoupon(ctx, "ECO10")
	require.NoError(t, err)

	c, err := store.ClearCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Nil(t, c.Coupon)
	assert.Empty(t, c.CouponCode)
	assert.Zero(t, c.Total)

	persisted, err := local.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, persisted.Items)
}

func TestApplyCouponDiscountsSubtotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	_, err := store.AddItem(ctx, Product{ID: "printer", Name: "Printer", Price: 100}, 1, nil)
	require.NoError(t, err)

	c, err := store.ApplyCoupon(ctx, "eco10")
	require.NoError(t, err)
	assert.Equal(t, "ECO10", c.CouponCode)
	assert.Equal(t, 10.0, c.Discount)
	assert.Equal(t, 98.0, c.Total)

	// the discount follows the subtotal
	c, err = store.UpdateItemQuantity(ctx, "printer", 2)
	require.NoError(t, err)
	assert.Equal(t, 20.0, c.Discount)
	assertTotalsConsistent(t, c)

	c, err = store.RemoveCoupon(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.Discount)
	assert.Empty(t, c.CouponCode)
	assertTotalsConsistent(t, c)
}

func TestApplyInvalidCouponLeavesCartUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	before, err := store.AddItem(ctx, ink, 1, nil)
	require.NoError(t, err)

	_, err = store.ApplyCoupon(ctx, "BADCODE")
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	after, err := store.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLocalOnlyRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := NewMemoryStore()

	first := newTestStore(t, Session{ID: "s1"}, local, nil)
	_, err := first.AddItem(ctx, ink, 2, nil)
	require.NoError(t, err)
	saved, err := first.ApplyCoupon(ctx, "FREESHIP")
	require.NoError(t, err)

	second := newTestStore(t, Session{ID: "s1"}, local, nil)
	loaded, err := second.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Items, loaded.Items)
	assert.Equal(t, saved.Total, loaded.Total)
	assert.Equal(t, "FREESHIP", loaded.CouponCode)
}

func TestRemoteRoundTripAcrossDevices(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newFakeRemote()

	laptop := newTestStore(t, Session{ID: "laptop", UserID: "u1"}, nil, remote)
	assert.Equal(t, ModeLocalPlusRemote, laptop.Mode())
	saved, err := laptop.AddItem(ctx, paper, 4, nil)
	require.NoError(t, err)

	phone := newTestStore(t, Session{ID: "phone", UserID: "u1"}, nil, remote)
	loaded, err := phone.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Items, loaded.Items)
	assert.Equal(t, saved.Total, loaded.Total)
}

func TestRemoteFailuresDoNotFailOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newFakeRemote()
	remote.getErr = errors.New("remote down")
	remote.putErr = errors.New("remote down")
	local := NewMemoryStore()

	store := newTestStore(t, Session{ID: "s1", UserID: "u1"}, local, remote)
	c, err := store.AddItem(ctx, ink, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, StateReady, store.State())
	assert.Len(t, c.Items, 1)

	persisted, err := local.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, persisted.Items, 1)
}

func TestGuestCartPromotedOnSignIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := NewMemoryStore()
	remote := newFakeRemote()

	guest := newTestStore(t, Session{ID: "s1"}, local, remote)
	_, err := guest.AddItem(ctx, ink, 2, nil)
	require.NoError(t, err)
	assert.Zero(t, remote.puts)

	signedIn := newTestStore(t, Session{ID: "s1", UserID: "u1"}, local, remote)
	c, err := signedIn.Cart(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)

	doc := remote.doc("u1")
	require.NotNil(t, doc)
	assert.Equal(t, 2, doc.Items[0].Quantity)
}

func TestRemoteDocumentWinsOverGuestCart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := NewMemoryStore()
	remote := newFakeRemote()
	require.NoError(t, remote.Put(ctx, "u1", &Cart{Items: []Item{{ID: "paper-a4", ProductID: "paper-a4", Price: 8, Quantity: 1}}}))
	require.NoError(t, local.Put(ctx, "s1", &Cart{Items: []Item{{ID: "ink-01", ProductID: "ink-01", Price: 12.5, Quantity: 1}}}))

	store := newTestStore(t, Session{ID: "s1", UserID: "u1"}, local, remote)
	c, err := store.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "paper-a4", c.Items[0].ID)
	assert.Equal(t, 8.0, c.Subtotal)

	mirrored, err := local.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "paper-a4", mirrored.Items[0].ID)
}

func TestLocalSaveFailureSurfacesDependencyError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := &failingLocal{MemoryStore: NewMemoryStore(), putErr: errors.New("disk full")}
	store := newTestStore(t, Session{ID: "s1"}, local, nil)

	_, err := store.AddItem(ctx, ink, 1, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	c, err := store.Cart(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, Session{ID: "s1"}, nil, nil)

	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AddItem(ctx, Product{ID: fmt.Sprintf("p-%d", i), Name: "p", Price: 1}, 1, nil)
			assert.NoError(t, err)
			_, err = store.AddItem(ctx, ink, 1, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	c, err := store.Cart(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Items, workers+1)
	idx := c.indexOf("ink-01")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, workers, c.Items[idx].Quantity)
}

func TestWatchAppliesNewerRemoteDocuments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newFakeRemote()
	remote.updates = make(chan *Cart, 2)

	store := newTestStore(t, Session{ID: "s1", UserID: "u1"}, nil, remote)
	current, err := store.AddItem(ctx, ink, 1, nil)
	require.NoError(t, err)

	remote.updates <- &Cart{
		Items:     []Item{{ID: "stale", ProductID: "stale", Price: 1, Quantity: 1}},
		UpdatedAt: current.UpdatedAt.Add(-time.Minute),
	}
	remote.updates <- &Cart{
		Items:     []Item{{ID: "paper-a4", ProductID: "paper-a4", Price: 8, Quantity: 3}},
		UpdatedAt: current.UpdatedAt.Add(time.Minute),
	}

	require.Eventually(t, func() bool {
		c, err := store.Cart(ctx)
		return err == nil && len(c.Items) == 1 && c.Items[0].ID == "paper-a4"
	}, time.Second, 10*time.Millisecond)

	c, err := store.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 24.0, c.Subtotal)
	assertTotalsConsistent(t, c)
}

func TestNewStoreRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewStore(StoreParams{Session: Session{ID: "s1"}})
	assert.Error(t, err)

	backend, err := NewBackend(BackendParams{Session: Session{ID: "s1"}, Local: NewMemoryStore()})
	require.NoError(t, err)
	_, err = NewStore(StoreParams{Backend: backend})
	assert.Error(t, err)

	_, err = NewBackend(BackendParams{Session: Session{ID: "s1"}})
	assert.Error(t, err)
}
