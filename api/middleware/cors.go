package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
)

// localOrigins are the web and mobile dev servers; production never allows them.
var localOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8081"}

// CORS allows browser clients from app.CORSOrigins, plus local dev servers
// outside production. Idempotency-Key must be allowed for money routes to work
// from a browser at all.
func CORS(app config.AppConfig) func(http.Handler) http.Handler {
	origins := append([]string(nil), app.CORSOrigins...)
	if !app.IsProd() {
		origins = append(origins, localOrigins...)
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			IdempotencyKeyHeader, responses.RequestIDHeader, "traceparent",
		},
		ExposedHeaders:   []string{responses.RequestIDHeader, ReplayedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
