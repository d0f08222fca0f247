package middleware

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisRateLimit_WithinLimit(t *testing.T) {
	_, client := newTestRedis(t)
	logger := zerolog.New(os.Stderr)
	cfg := RateLimitConfig{RequestsPerSecond: 5}

	e := echo.New()
	handler := RedisRateLimit(client, cfg, logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		c, rec := newRateLimitContext(e, "tenant-a")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "5" {
			t.Errorf("request %d: expected X-RateLimit-Limit '5', got %q",
				i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRedisRateLimit_ExceedsLimit(t *testing.T) {
	_, client := newTestRedis(t)
	logger := zerolog.New(os.Stderr)
	cfg := RateLimitConfig{RequestsPerSecond: 2}

	e := echo.New()
	handler := RedisRateLimit(client, cfg, logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 2; i++ {
		c, _ := newRateLimitContext(e, "tenant-a")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	c, rec := newRateLimitContext(e, "tenant-a")
	err := handler(c)
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header to be set")
	}
}

func TestRedisRateLimit_WindowExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	logger := zerolog.New(os.Stderr)
	cfg := RateLimitConfig{RequestsPerSecond: 1}

	e := echo.New()
	handler := RedisRateLimit(client, cfg, logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	c, _ := newRateLimitContext(e, "tenant-a")
	if err := handler(c); err != nil {
		t.Fatalf("first request: expected no error, got %v", err)
	}

	c, _ = newRateLimitContext(e, "tenant-a")
	if err := handler(c); err == nil {
		t.Fatal("second request: expected rate limit error")
	}

	// Advance past the window; the counter expires and requests flow again.
	mr.FastForward(2 * time.Second)

	c, _ = newRateLimitContext(e, "tenant-a")
	if err := handler(c); err != nil {
		t.Fatalf("request after window: expected no error, got %v", err)
	}
}

func TestRedisRateLimit_PerTenantIsolation(t *testing.T) {
	_, client := newTestRedis(t)
	logger := zerolog.New(os.Stderr)
	cfg := RateLimitConfig{RequestsPerSecond: 1}

	e := echo.New()
	handler := RedisRateLimit(client, cfg, logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	c1, _ := newRateLimitContext(e, "tenant-a")
	if err := handler(c1); err != nil {
		t.Fatalf("tenant-a first request: expected no error, got %v", err)
	}

	c2, _ := newRateLimitContext(e, "tenant-a")
	if err := handler(c2); err == nil {
		t.Fatal("tenant-a second request: expected rate limit error")
	}

	c3, _ := newRateLimitContext(e, "tenant-b")
	if err := handler(c3); err != nil {
		t.Fatalf("tenant-b first request: expected no error, got %v", err)
	}
}

func TestRedisRateLimit_FailsOpenWhenStoreDown(t *testing.T) {
	mr, client := newTestRedis(t)
	logger := zerolog.New(os.Stderr)
	cfg := RateLimitConfig{RequestsPerSecond: 1}

	e := echo.New()
	handler := RedisRateLimit(client, cfg, logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	mr.Close()

	// With the store down every request passes through.
	for i := 0; i < 3; i++ {
		c, _ := newRateLimitContext(e, "tenant-a")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected fail-open, got %v", i+1, err)
		}
	}
}
