package middleware

import (
	"net/http"
	"strconv"

	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/khatabook-backend/pkg/redis"
)

// WriteRateLimit throttles mutating requests per authenticated user with a
// fixed window. Reads pass through. Must run after Auth.
func WriteRateLimit(cfg config.RateLimitConfig, store pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || cfg.WriteLimit <= 0 || cfg.WriteWindow <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			userID := UserIDFromContext(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			allowed, count, err := store.FixedWindowAllow(ctx, "writes:"+userID, int64(cfg.WriteLimit), cfg.WriteWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"attempts":       count,
						"limit":          cfg.WriteLimit,
						"window_seconds": int(cfg.WriteWindow.Seconds()),
					})
					logg.Warn(logCtx, "api.rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WriteWindow.Seconds())))
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
