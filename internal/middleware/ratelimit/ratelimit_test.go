package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsBurstThenRejects(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 6, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("198.51.100.1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("198.51.100.1"))
	assert.True(t, l.Allow("198.51.100.2"), "other clients have their own bucket")

	m := l.GetMetrics()
	assert.Equal(t, int64(5), m.TotalHits)
	assert.Equal(t, int64(1), m.Rejected)
	assert.Equal(t, int64(2), m.ClientCount)
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(Config{})
	assert.Equal(t, 20, l.burst)
	assert.Equal(t, 1, l.RetryAfter())

	slow := NewLimiter(Config{RequestsPerMinute: 10})
	assert.Equal(t, 10, slow.burst)
	assert.Equal(t, 6, slow.RetryAfter())
}

func TestLimiter_Middleware(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, Burst: 1})
	h := l.Middleware(
		func(r *http.Request) string { return "client" },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/auth/login/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/auth/login/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}
