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

package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	// EnableHSTS enables HTTP Strict Transport Security
	EnableHSTS bool

	// HSTSMaxAge is the max-age for HSTS header (default: 31536000 = 1 year)
	HSTSMaxAge int

	// HSTSIncludeSubdomains includes subdomains in HSTS
	HSTSIncludeSubdomains bool

	// ContentSecurityPolicy sets the CSP header
	ContentSecurityPolicy string

	// XFrameOptions sets the X-Frame-Options header (default: "DENY")
	XFrameOptions string

	// XContentTypeOptions sets the X-Content-Type-Options header (default: "nosniff")
	XContentTypeOptions string

	// ReferrerPolicy sets the Referrer-Policy header
	ReferrerPolicy string

	// CacheControl keeps tracking reports out of shared caches (default: "no-store")
	CacheControl string
}

// DefaultSecurityHeadersConfig returns security headers config with sensible defaults
func DefaultSecurityHeadersConfig() *SecurityHeadersConfig {
	return &SecurityHeadersConfig{
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CacheControl:          "no-store",
	}
}

// SecurityHeadersMiddleware creates a Gin middleware that sets security headers
func SecurityHeadersMiddleware(config *SecurityHeadersConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecurityHeadersConfig()
	}

	headers := map[string]string{
		"X-Content-Type-Options":  config.XContentTypeOptions,
		"X-Frame-Options":         config.XFrameOptions,
		"Content-Security-Policy": config.ContentSecurityPolicy,
		"Referrer-Policy":         config.ReferrerPolicy,
		"Cache-Control":           config.CacheControl,
	}

	return func(c *gin.Context) {
		for name, value := range headers {
			if value != "" {
				c.Header(name, value)
			}
		}
		if config.EnableHSTS && c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", formatHSTSHeader(config))
		}
		c.Next()
	}
}

func formatHSTSHeader(config *SecurityHeadersConfig) string {
	value := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
	if config.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}
