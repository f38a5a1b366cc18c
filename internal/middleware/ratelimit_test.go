package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (l *countingLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] > limit, nil
}

func newLimitedRouter(l RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(l, 2, time.Second))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func TestRateLimit(t *testing.T) {
	router := newLimitedRouter(&countingLimiter{counts: map[string]int{}})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	router := newLimitedRouter(&countingLimiter{err: errors.New("redis down")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_InvalidConfigPanics(t *testing.T) {
	l := &countingLimiter{counts: map[string]int{}}
	assert.Panics(t, func() { RateLimit(nil, 1, time.Second) })
	assert.Panics(t, func() { RateLimit(l, 0, time.Second) })
	assert.Panics(t, func() { RateLimit(l, 1, 0) })
}
