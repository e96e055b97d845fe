package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const metricsSecretHeader = "X-Metrics-Secret"

// MetricsSecretMiddleware guards the metrics endpoint. With an empty secret
// the endpoint is open; otherwise the scraper must send the secret in
// X-Metrics-Secret or as a bearer token. Query strings are not accepted.
func MetricsSecretMiddleware(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		token := strings.TrimSpace(c.GetHeader(metricsSecretHeader))
		if token == "" {
			if parts := strings.Fields(c.GetHeader("Authorization")); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				token = parts[1]
			}
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
