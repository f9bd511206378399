// Package middleware provides the HTTP middleware shared by the planner API.
package middleware

import (
	"net/http"
	"time"

	"github.com/rs/cors"
)

// preflightMaxAge lets browsers cache a preflight across a drag gesture,
// which otherwise issues one per pointer event.
const preflightMaxAge = 10 * time.Minute

// NewCORSHandler returns a middleware that applies CORS headers for the
// planner front end. Each entry in allowedOrigins is a full origin (scheme
// and host, no trailing slash). Content-Disposition is exposed so the
// browser can read the CSV export file name.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Last-Event-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
		MaxAge:         int(preflightMaxAge.Seconds()),
	})
	return c.Handler
}
