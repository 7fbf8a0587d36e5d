package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

var baseSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"X-XSS-Protection", "0"},
}

// SecurityHeaders sets hardening headers on every response. Uploaded images
// get a CSP that lets browsers render them, and auth responses, which carry
// tokens, are marked no-store.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range baseSecurityHeaders {
			h.Set(kv[0], kv[1])
		}

		path := c.Request.URL.Path
		switch {
		case strings.HasPrefix(path, "/uploads/"):
			h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		case strings.HasPrefix(path, "/api/auth/"):
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
		default:
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		c.Next()
	}
}
