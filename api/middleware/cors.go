package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

const corsMaxAgeSeconds = 300

// CORS applies the storefront's origin policy. Cart requests carry the
// session and request id headers both ways. A "*" origin disables
// credentials, since browsers refuse that combination.
func CORS(origins []string) func(http.Handler) http.Handler {
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{"http://localhost:3000"}
	}

	return cors.New(cors.Options{
		AllowedOrigins:   cleaned,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionIDHeader, requestIDHeader},
		ExposedHeaders:   []string{SessionIDHeader, requestIDHeader, "Retry-After"},
		AllowCredentials: !slices.Contains(cleaned, "*"),
		MaxAge:           corsMaxAgeSeconds,
	}).Handler
}
