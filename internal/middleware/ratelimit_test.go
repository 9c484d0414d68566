package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewRateLimiter(limit).RateLimit())
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doRequest(router *gin.Engine, ip string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	router := newLimitedRouter(2)

	assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "10.0.0.1"))
}

func TestRateLimitTracksClientsIndependently(t *testing.T) {
	router := newLimitedRouter(1)

	assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.2"))
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}
