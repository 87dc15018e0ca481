package coupons

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airink/storefront-backend/internal/cart"
)

func TestFirestoreSourceFindCoupon(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "storefront-test")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Collection(couponsCollection).Doc("SUMMER12").Set(ctx, map[string]any{
		"type":     "percentage",
		"value":    12,
		"isActive": true,
	})
	require.NoError(t, err)

	source := NewFirestoreSource(client)
	got, err := source.FindCoupon(ctx, "summer12")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SUMMER12", got.Code)
	assert.Equal(t, cart.CouponPercentage, got.Kind)
	assert.Equal(t, 12.0, got.Value)

	missing, err := source.FindCoupon(ctx, "NOT-THERE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFirestoreSourceSeedKeepsExisting(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "storefront-seed-test")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Collection(couponsCollection).Doc("ECO10").Set(ctx, map[string]any{
		"type":     "fixed",
		"value":    2,
		"isActive": true,
	})
	require.NoError(t, err)

	source := NewFirestoreSource(client)
	created, err := source.Seed(ctx, cart.DefaultFallbackTable())
	require.NoError(t, err)
	assert.Equal(t, len(cart.DefaultFallbackTable())-1, created)

	eco, err := source.FindCoupon(ctx, "ECO10")
	require.NoError(t, err)
	assert.Equal(t, cart.CouponFixed, eco.Kind)
}

func TestFirestoreSourceWithoutClient(t *testing.T) {
	_, err := NewFirestoreSource(nil).FindCoupon(context.Background(), "ECO10")
	assert.Error(t, err)

	_, err = NewFirestoreSource(nil).Seed(context.Background(), cart.DefaultFallbackTable())
	assert.Error(t, err)
}
