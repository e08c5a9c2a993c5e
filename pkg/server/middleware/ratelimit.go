// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package middleware provides the gin middleware shared by the admin API.
package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond is the number of requests allowed per second
	RequestsPerSecond float64

	// Burst is the maximum burst size
	Burst int

	// PerIP enables per-IP rate limiting (default: false = global rate limit)
	PerIP bool

	// Exempt lists route templates that are never limited, such as the
	// event feed.
	Exempt []string
}

// DefaultRateLimitConfig returns a rate limit config with sensible defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
	}
}

type rateLimiter struct {
	config  *RateLimitConfig
	global  *rate.Limiter
	clients map[string]*rate.Limiter
	exempt  map[string]struct{}
	mu      sync.RWMutex
}

func newRateLimiter(config *RateLimitConfig) *rateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	rl := &rateLimiter{
		config:  config,
		clients: make(map[string]*rate.Limiter),
		exempt:  make(map[string]struct{}, len(config.Exempt)),
	}
	for _, route := range config.Exempt {
		rl.exempt[route] = struct{}{}
	}
	if !config.PerIP {
		rl.global = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}
	return rl
}

// getLimiter returns the limiter for clientIP, creating it on first use.
func (rl *rateLimiter) getLimiter(clientIP string) *rate.Limiter {
	if !rl.config.PerIP {
		return rl.global
	}

	rl.mu.RLock()
	limiter, exists := rl.clients[clientIP]
	rl.mu.RUnlock()
	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, exists := rl.clients[clientIP]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
	rl.clients[clientIP] = limiter
	return limiter
}

// RateLimitMiddleware rejects requests over the configured rate with 429.
func RateLimitMiddleware(config *RateLimitConfig, logger adapters.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	limiter := newRateLimiter(config)

	return func(c *gin.Context) {
		if _, ok := limiter.exempt[c.FullPath()]; ok {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		if limiter.getLimiter(clientIP).Allow() {
			c.Next()
			return
		}

		logger.Warn(c.Request.Context(), "Rate limit exceeded",
			adapters.F("client_ip", clientIP),
			adapters.F("path", c.Request.URL.Path),
			adapters.F("method", c.Request.Method))

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%.0f", limiter.config.RequestsPerSecond))
		c.Header("X-RateLimit-Burst", fmt.Sprintf("%d", limiter.config.Burst))
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate limit exceeded",
			"message": "too many requests, please try again later",
		})
	}
}
