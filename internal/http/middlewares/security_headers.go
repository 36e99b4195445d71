package middlewares

import (
	"github.com/gin-gonic/gin"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	hsts   = "max-age=31536000; includeSubDomains"
)

// SecurityHeaders sets the response headers of a JSON-only API. strictTransport
// adds HSTS and belongs behind TLS only.
func SecurityHeaders(strictTransport bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", apiCSP)
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		if strictTransport {
			h.Set("Strict-Transport-Security", hsts)
		}

		// responses to authenticated calls carry personal data
		if c.GetHeader("Authorization") != "" {
			h.Set("Cache-Control", "no-store")
		}

		c.Next()
	}
}
