package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"portfolioHub/internal/api/middleware"
	"portfolioHub/internal/auth"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/probe"
	"portfolioHub/internal/submit"
)

// SessionInvalidator drops a session whose token the service rejected.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, sessionID string)
}

// SessionCookie describes the browser session cookie.
type SessionCookie struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

func (s SessionCookie) set(c *gin.Context, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.Name,
		Value:    sessionID,
		MaxAge:   int(s.TTL.Seconds()),
		Expires:  time.Now().Add(s.TTL),
		Path:     "/",
		Secure:   s.Secure || isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s SessionCookie) clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.Name,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   s.Secure || isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionEnder ends a session after the service answered 401: the token
// is dropped, the probe released and the browser sent to the login page.
type sessionEnder struct {
	sessions SessionInvalidator
	probes   *probe.Registry
	cookie   SessionCookie
}

func (e sessionEnder) end(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if sessionID != "" {
		e.sessions.Invalidate(c.Request.Context(), sessionID)
		if e.probes != nil {
			e.probes.Release(sessionID)
		}
	}
	e.cookie.clear(c)
	middleware.LoggerFromContext(c).Info("session ended by portfolio service")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    submit.MsgSessionEnded,
		"redirect": submit.LoginPath,
	})
}

// isSessionRejected reports errors that must end the session.
func isSessionRejected(err error) bool {
	return errors.Is(err, portfolioapi.ErrUnauthorized) || errors.Is(err, auth.ErrNotAuthenticated)
}

// upstreamError answers with the service's own 4xx status and message, or
// 502 when the service is unreachable or failing.
func upstreamError(c *gin.Context, err error, fallback string) {
	var apiErr *portfolioapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		Error(c, apiErr.Status, msg)
		return
	}
	middleware.LoggerFromContext(c).Error("portfolio service call failed", slog.Any("error", err))
	BadGateway(c, fallback)
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
