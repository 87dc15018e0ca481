package instance

import "github.com/airink/storefront-backend/pkg/env"

// GetID identifies this process in logs. Heroku-style DYNO wins over the
// explicit STOREFRONT_INSTANCE_ID; "local" is the fallback.
func GetID() string {
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	return env.Get("STOREFRONT_INSTANCE_ID", "local")
}
