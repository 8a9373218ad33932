package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

func TestRequestIDSources(t *testing.T) {
	const trace = "4bf92f3577b34da6a3ce929d0e0e4736"
	cases := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"caller id kept", map[string]string{responses.RequestIDHeader: "mobile-1234abcd"}, "mobile-1234abcd"},
		{"trace id from traceparent", map[string]string{"traceparent": "00-" + trace + "-00f067aa0ba902b7-01"}, trace},
		{"caller id beats traceparent", map[string]string{responses.RequestIDHeader: "mobile-1234abcd", "traceparent": "00-" + trace + "-00f067aa0ba902b7-01"}, "mobile-1234abcd"},
		{"short id replaced", map[string]string{responses.RequestIDHeader: "abc"}, ""},
		{"injection replaced", map[string]string{responses.RequestIDHeader: "id\nlevel=error"}, ""},
		{"all-zero trace replaced", map[string]string{"traceparent": "00-00000000000000000000000000000000-00f067aa0ba902b7-01"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)

			assert.Equal(t, seen, resp.Header().Get(responses.RequestIDHeader))
			if tc.want != "" {
				assert.Equal(t, tc.want, seen)
			} else {
				assert.Len(t, seen, 36, "fresh uuid")
			}
		})
	}
}

func TestRecovererWritesEnvelope(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})
	h := Recoverer(logg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("ledger exploded")
	}))

	resp := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)) })
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), `"INTERNAL_ERROR"`)
	assert.NotContains(t, resp.Body.String(), "ledger exploded")
	assert.Contains(t, logs.String(), "panic_stack")
}

func TestRecovererRethrowsAbort(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORSOriginsByEnvironment(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	preflight := func(h http.Handler, origin string) string {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", IdempotencyKeyHeader)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		return resp.Header().Get("Access-Control-Allow-Origin")
	}

	dev := CORS(config.AppConfig{Env: "dev"})(ok)
	assert.Equal(t, "http://localhost:3000", preflight(dev, "http://localhost:3000"))

	prod := CORS(config.AppConfig{Env: "prod", CORSOrigins: []string{"https://app.khatabook.example"}})(ok)
	assert.Equal(t, "https://app.khatabook.example", preflight(prod, "https://app.khatabook.example"))
	assert.Empty(t, preflight(prod, "http://localhost:3000"))
}
