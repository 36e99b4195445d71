package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if ok, _, _ := rl.Allow(ctx, "k"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}

	ok, retry, _ := rl.Allow(ctx, "k")
	if ok {
		t.Fatal("third request should be limited")
	}
	if retry != time.Minute {
		t.Fatalf("expected retry after 1m, got %v", retry)
	}

	if ok, _, _ := rl.Allow(ctx, "other"); !ok {
		t.Fatal("keys must be independent")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _, _ := rl.Allow(ctx, "k"); !ok {
		t.Fatal("a new window should reset the count")
	}
}

func TestRateLimiterDropsExpiredBuckets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	ctx := context.Background()
	for _, key := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if ok, _, _ := rl.Allow(ctx, key); !ok {
			t.Fatalf("first request for %s should pass", key)
		}
	}
	if got := len(rl.clients); got != 3 {
		t.Fatalf("expected 3 buckets, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if ok, _, _ := rl.Allow(ctx, "10.0.0.4"); !ok {
		t.Fatal("new client should pass")
	}
	if got := len(rl.clients); got != 1 {
		t.Fatalf("expired buckets should be dropped, %d left", got)
	}
	if _, ok := rl.clients["10.0.0.4"]; !ok {
		t.Fatal("the live bucket must survive the sweep")
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(l Limiter) *gin.Engine {
		r := gin.New()
		r.POST("/login", RateLimit(l, KeyByIP, nil), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return r
	}

	r := newRouter(NewRateLimiter(1, time.Minute))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)

		if i == 1 && w.Header().Get("Retry-After") == "" {
			t.Fatal("limited response must carry Retry-After")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}

	w := httptest.NewRecorder()
	newRouter(failingLimiter{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("limiter errors must fail open, got %d", w.Code)
	}
}
