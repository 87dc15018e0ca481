package controllers

import (
	"context"
	"net/http"

	"github.com/airink/storefront-backend/api/middleware"
	"github.com/airink/storefront-backend/api/responses"
	"github.com/airink/storefront-backend/api/validators"
	"github.com/airink/storefront-backend/internal/cart"
	pkgerrors "github.com/airink/storefront-backend/pkg/errors"
	"github.com/airink/storefront-backend/pkg/logger"
)

const maxItemIDLength = 256

// CartSessions hands out the cart store bound to a session.
type CartSessions interface {
	Get(ctx context.Context, session cart.Session) (*cart.Store, error)
}

type cartResponse struct {
	*cart.Cart
	Mode string `json:"mode"`
}

type addItemRequest struct {
	Product  cart.Product  `json:"product"`
	Quantity int           `json:"quantity" validate:"gte=0,lte=999"`
	Variant  *cart.Variant `json:"variant,omitempty" validate:"omitempty"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=999"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64,coupon_code"`
}

func sessionFrom(r *http.Request) (cart.Session, error) {
	s, ok := middleware.CartSessionFromContext(r.Context())
	if !ok || s.ID == "" {
		return s, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing")
	}
	return s, nil
}

// withStore resolves the caller's store and runs op against it, writing the
// resulting cart or error.
func withStore(sessions CartSessions, logg *logger.Logger, op func(r *http.Request, store *cart.Store) (*cart.Cart, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := sessions.Get(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := op(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartResponse{Cart: c, Mode: store.Mode()})
	}
}

// CartFetch returns the session's cart.
func CartFetch(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return withStore(sessions, logg, func(r *http.Request, store *cart.Store) (*cart.Cart, error) {
		return store.Cart(r.Context())
	})
}

func CartAddItem(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return withStore(sessions, logg, func(r *http.Request, store *cart.Store) (*cart.Cart, error) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return store.AddItem(r.Context(), payload.Product, payload.Quantity, payload.Variant)
	})
}

func CartUpdateItemQuantity(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return withStore(sessions, logg, func(r *http.Request, store *cart.Store) (*cart.Cart, error) {
		itemID, err := validators.PathParam(r, "itemId", maxItemIDLength)
		if err != nil {
			return nil, err
		}
		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return store.UpdateItemQuantity(r.Context(), itemID, *payload.Quantity)
	})
}

func CartRemoveItem(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return withStore(sessions, logg, func(r *http.Request, store *cart.Store) (*cart.Cart, error) {
		itemID, err := validators.PathParam(r, "itemId", maxItemIDLength)
		if err != nil {
			return nil, err
		}
		return store.RemoveItem(r.Context(), itemID)
	})
}

func CartClear(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return withStore(sessions, logg, func(r *http.Request, store *cart.Store) (*cart.Cart, error) {
		return store.ClearCart(r.Context())
	})
}

func CartApplyCoupon(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return withStore(sessions, logg, func(r *http.Request, store *cart.Store) (*cart.Cart, error) {
		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return store.ApplyCoupon(r.Context(), payload.Code)
	})
}

func CartRemoveCoupon(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return withStore(sessions, logg, func(r *http.Request, store *cart.Store) (*cart.Cart, error) {
		return store.RemoveCoupon(r.Context())
	})
}
