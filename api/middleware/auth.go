package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/khatabook-backend/api/responses"
	pkgAuth "github.com/angelmondragon/khatabook-backend/pkg/auth"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

const bearerChallenge = `Bearer realm="khatabook"`

// bearerToken extracts the credential of an "Authorization: Bearer <token>"
// header. Other schemes are rejected.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Auth verifies the access token and stores the caller in the request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", bearerChallenge)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", bearerChallenge+`, error="invalid_token"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			who := actor{userID: claims.UserID.String(), role: string(claims.Role)}
			ctx := withActor(r.Context(), who)
			if logg != nil {
				ctx = logg.WithActor(ctx, who.userID, who.role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
