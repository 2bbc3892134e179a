package datasource

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

// fakeClock returns a controllable time source for Cache.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache[string](ttl)
	c.now = clock.now
	return c, clock
}

func TestCacheSetGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("key1", "value1")

	v, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v != "value1" {
		t.Fatalf("got %v, want value1", v)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected cache miss for unknown key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("key", "val")

	clock.t = clock.t.Add(2 * time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() #%d failed: %v", i, err)
		}
	}
}

func TestRateLimiterCancelledContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestErrHTTP(t *testing.T) {
	e := &ErrHTTP{URL: "http://x/a.zip", StatusCode: 404, Status: "404 Not Found", Body: "page not found"}
	if msg := e.Error(); !strings.Contains(msg, "404 Not Found") || !strings.Contains(msg, "http://x/a.zip") {
		t.Fatalf("unexpected error message: %s", msg)
	}

	tests := []struct {
		code int
		want bool
	}{
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		if got := (&ErrHTTP{StatusCode: tt.code}).Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), cfg, func() error {
			calls++
			if calls < 3 {
				return &ErrHTTP{StatusCode: http.StatusServiceUnavailable}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("permanent error stops", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), cfg, func() error {
			calls++
			return &ErrHTTP{StatusCode: http.StatusNotFound}
		})
		var httpErr *ErrHTTP
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 ErrHTTP, got %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), cfg, func() error {
			calls++
			return &ErrHTTP{StatusCode: http.StatusInternalServerError}
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls != cfg.MaxAttempts {
			t.Errorf("calls = %d, want %d", calls, cfg.MaxAttempts)
		}
	})
}
