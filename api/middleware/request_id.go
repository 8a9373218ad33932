package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

var (
	requestIDPattern   = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)
	traceparentPattern = regexp.MustCompile(`^[0-9a-f]{2}-([0-9a-f]{32})-[0-9a-f]{16}-[0-9a-f]{2}$`)
)

// RequestID tags every request with an id that is echoed back and attached to
// its log lines. A caller's X-Request-Id is kept when it looks sane, then the
// trace id of a W3C traceparent, else a fresh UUID.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := inboundRequestID(r.Header)
			w.Header().Set(responses.RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestIDKey, id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func inboundRequestID(h http.Header) string {
	if id := strings.TrimSpace(h.Get(responses.RequestIDHeader)); requestIDPattern.MatchString(id) {
		return id
	}
	if m := traceparentPattern.FindStringSubmatch(strings.TrimSpace(h.Get("traceparent"))); m != nil && strings.Trim(m[1], "0") != "" {
		return m[1]
	}
	return uuid.NewString()
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
