package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RateLimiter caps requests per client IP over a sliding one-minute window.
// State is in-memory and per-process; a multi-instance deployment would move
// this into redis alongside the session locks.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int // requests per minute per IP
}

type clientWindow struct {
	windowStart time.Time
	requests    int
}

func NewRateLimiter(limit int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
	}

	go rl.evictStale()

	return rl
}

// RateLimit is the gin middleware enforcing the per-IP limit.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window, ok := rl.clients[ip]
	if !ok || now.Sub(window.windowStart) > time.Minute {
		rl.clients[ip] = &clientWindow{windowStart: now, requests: 1}
		return true
	}

	if window.requests >= rl.limit {
		return false
	}
	window.requests++
	return true
}

// evictStale drops windows idle long enough that they can never deny a
// request again.
func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-5 * time.Minute)

		rl.mu.Lock()
		for ip, window := range rl.clients {
			if window.windowStart.Before(cutoff) {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Security middleware
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
