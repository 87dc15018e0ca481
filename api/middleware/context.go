package middleware

import (
	"context"

	"github.com/airink/storefront-backend/internal/cart"
)

type cartSessionKey struct{}

// CartSessionFromContext returns the session placed by the Session
// middleware. ok is false when the request never passed through it.
func CartSessionFromContext(ctx context.Context) (cart.Session, bool) {
	if ctx == nil {
		return cart.Session{}, false
	}
	s, ok := ctx.Value(cartSessionKey{}).(cart.Session)
	return s, ok
}

func WithCartSession(ctx context.Context, s cart.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cartSessionKey{}, s)
}
