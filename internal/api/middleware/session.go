package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolioHub/internal/auth"
)

const (
	sessionIDKey    = "sessionID"
	sessionTokenKey = "sessionToken"
)

// TokenSource resolves a session id to its bearer token.
type TokenSource interface {
	Token(ctx context.Context, sessionID string) (string, error)
}

// SessionMiddleware rejects requests without a live session before any
// upstream call is made, and stores the session id and token in the context.
func SessionMiddleware(cookieName string, sessions TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cookieName)
		if err != nil || sessionID == "" {
			abortUnauthorized(c)
			return
		}

		token, err := sessions.Token(c.Request.Context(), sessionID)
		if err != nil {
			if !errors.Is(err, auth.ErrNotAuthenticated) {
				LoggerFromContext(c).Error("session lookup failed", slog.Any("error", err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			abortUnauthorized(c)
			return
		}

		c.Set(sessionIDKey, sessionID)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

// SessionID returns the id stored by SessionMiddleware.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// SessionToken returns the bearer token stored by SessionMiddleware.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": "/login"})
}
