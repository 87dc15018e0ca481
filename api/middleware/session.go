package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/airink/storefront-backend/api/responses"
	"github.com/airink/storefront-backend/internal/cart"
	pkgAuth "github.com/airink/storefront-backend/pkg/auth"
	"github.com/airink/storefront-backend/pkg/config"
	pkgerrors "github.com/airink/storefront-backend/pkg/errors"
	"github.com/airink/storefront-backend/pkg/logger"
)

// SessionIDHeader carries the guest cart session between requests.
const SessionIDHeader = "X-Session-Id"

const maxSessionIDLength = 128

// Session resolves who owns the cart. Every request gets a session id (issued
// and echoed back when the client has none). A bearer token is optional, but
// when present it must be valid; its subject becomes the user id and its sid
// claim restores the guest session when the header is missing.
func Session(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier := pkgAuth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			claims, err := verifier.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			// A signed sid pins the guest cart; the header cannot override it.
			sessionID := strings.TrimSpace(r.Header.Get(SessionIDHeader))
			if claims != nil && claims.SessionID != "" {
				if sessionID != "" && sessionID != claims.SessionID {
					logg.Warn(logg.WithField(ctx, "header_session_id", sessionID), "session.header_mismatch")
				}
				sessionID = claims.SessionID
			}
			if sessionID == "" || len(sessionID) > maxSessionIDLength {
				sessionID = uuid.NewString()
			}
			w.Header().Set(SessionIDHeader, sessionID)

			session := cart.Session{ID: sessionID, UserID: claims.UserID()}
			ctx = logg.WithUserID(logg.WithSessionID(ctx, session.ID), session.UserID)

			next.ServeHTTP(w, r.WithContext(WithCartSession(ctx, session)))
		})
	}
}
