package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedRouter(t *testing.T, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handler)
	router.POST("/oauth2/token", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postFrom(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewMemoryRateLimiter(t *testing.T) {
	limiter, err := NewMemoryRateLimiter("token", 3)
	require.NoError(t, err)
	router := limitedRouter(t, limiter)

	for i := range 3 {
		w := postFrom(router, "192.168.1.100")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
	}

	w := postFrom(router, "192.168.1.100")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{
		Endpoint:          "login",
		RequestsPerMinute: 1,
		StoreType:         RateLimitStoreMemory,
		CleanupInterval:   time.Minute,
	})
	require.NoError(t, err)
	router := limitedRouter(t, limiter)

	assert.Equal(t, http.StatusOK, postFrom(router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, postFrom(router, "10.0.0.2").Code)
}

func TestNewRateLimiter_InvalidConfig(t *testing.T) {
	_, err := NewRateLimiter(RateLimitConfig{
		Endpoint:          "token",
		RequestsPerMinute: 10,
		StoreType:         RateLimitStoreRedis,
	})
	assert.Error(t, err)

	_, err = NewRateLimiter(RateLimitConfig{Endpoint: "token", RequestsPerMinute: 0})
	assert.Error(t, err)
}
