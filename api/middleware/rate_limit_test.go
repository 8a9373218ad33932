package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
)

type countingLimiter struct {
	counts map[string]int64
	scopes []string
	err    error
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.scopes = append(c.scopes, scope)
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWriteRateLimitBlocksAfterLimit(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}}
	handler := WriteRateLimit(config.RateLimitConfig{WriteLimit: 2, WriteWindow: time.Minute}, limiter, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if limiter.scopes[0] != "writes:user-1" {
		t.Fatalf("unexpected scope %q", limiter.scopes[0])
	}
}

func TestWriteRateLimitIgnoresReads(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}}
	handler := WriteRateLimit(config.RateLimitConfig{WriteLimit: 1, WriteWindow: time.Minute}, limiter, nil)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
	if len(limiter.scopes) != 0 {
		t.Fatalf("reads should not be counted, got %v", limiter.scopes)
	}
}

func TestWriteRateLimitStoreFailure(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}, err: errors.New("redis down")}
	handler := WriteRateLimit(config.RateLimitConfig{WriteLimit: 1, WriteWindow: time.Minute}, limiter, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/couriers", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestWriteRateLimitDisabled(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}}
	handler := WriteRateLimit(config.RateLimitConfig{}, limiter, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || len(limiter.scopes) != 0 {
		t.Fatalf("expected passthrough, got %d scopes=%v", resp.Code, limiter.scopes)
	}
}
