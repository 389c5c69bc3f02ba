package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"camcast/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func rateLimitRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/websocket/:quality", NewConnectionRateLimitMiddleware(cfg), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doRequest(router *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/websocket/50", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_DisabledPassesEverything(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := rateLimitRouter(cfg)

	for i := 0; i < 100; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1234"))
	}
}

func TestRateLimit_BurstThenThrottle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.ConnectionsPerMinute = 60
	cfg.RateLimiting.Burst = 3
	router := rateLimitRouter(cfg)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1234"), "request %d within burst", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "10.0.0.1:1234"))
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.ConnectionsPerMinute = 60
	cfg.RateLimiting.Burst = 1
	router := rateLimitRouter(cfg)

	assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "10.0.0.1:1234"))

	// A different client has its own budget.
	assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.2:1234"))
}

func TestRateLimit_XForwardedForWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.ConnectionsPerMinute = 60
	cfg.RateLimiting.Burst = 1
	router := rateLimitRouter(cfg)

	send := func(forwardedFor string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/websocket/50", nil)
		req.RemoteAddr = "127.0.0.1:9999"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7"))
	assert.Equal(t, http.StatusOK, send("203.0.113.8"))
}

func TestRateLimit_GlobalConcurrencyCap(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.ConnectionsPerMinute = 6000
	cfg.RateLimiting.Burst = 100
	cfg.RateLimiting.MaxConcurrent = 1

	gin.SetMode(gin.TestMode)
	router := gin.New()
	hold := make(chan struct{})
	entered := make(chan struct{})
	router.GET("/websocket/:quality", NewConnectionRateLimitMiddleware(cfg), func(c *gin.Context) {
		entered <- struct{}{}
		<-hold
		c.Status(http.StatusOK)
	})

	go func() {
		doRequest(router, "10.0.0.1:1111")
	}()
	<-entered

	// The only slot is taken for the first connection's lifetime.
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(router, "10.0.0.2:2222"))

	close(hold)
}
