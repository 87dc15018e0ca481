package controllers

import (
	"net/http"

	"github.com/airink/storefront-backend/api/middleware"
	"github.com/airink/storefront-backend/api/responses"
	"github.com/airink/storefront-backend/internal/cart"
	"github.com/airink/storefront-backend/pkg/types"
)

// SessionInfo reports the session the cart endpoints will use for this
// caller and which persistence mode that implies. remoteEnabled mirrors
// whether a remote cart store is wired.
func SessionInfo(remoteEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := middleware.CartSessionFromContext(r.Context())
		mode := cart.ModeLocalOnly
		if remoteEnabled && s.Authenticated() {
			mode = cart.ModeLocalPlusRemote
		}
		responses.WriteSuccess(w, types.SessionInfo{
			SessionID:     s.ID,
			UserID:        s.UserID,
			Authenticated: s.Authenticated(),
			Mode:          mode,
		})
	}
}
