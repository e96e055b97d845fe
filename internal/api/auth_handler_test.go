package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioHub/internal/auth"
	"portfolioHub/internal/form"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/submit"
)

func sessionCookieFrom(t *testing.T, header http.Header) *http.Cookie {
	t.Helper()
	for _, c := range (&http.Response{Header: header}).Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in %v", testCookie, header)
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "Jane@Example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookie := sessionCookieFrom(t, w.Header())
	assert.True(t, cookie.HttpOnly)
	token, err := s.sessions.Token(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	w = s.do(t, http.MethodGet, "/v1/auth/user", cookie.Value, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Jane", decode[map[string]any](t, w)["name"])
}

func TestLoginRejectedCountsTowardsLock(t *testing.T) {
	s := newTestServer(t)
	s.upstream.loginErr = &portfolioapi.APIError{Status: http.StatusBadRequest, Message: "Invalid Credentials"}

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "jane@example.com", "password": "nope"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid Credentials", decode[map[string]string](t, w)["error"])
	}

	s.upstream.loginErr = nil
	w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "jane@example.com", "password": "secret"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.True(t, s.mr.Exists("lock:login:jane@example.com"))
}

func TestLoginUpstreamDown(t *testing.T) {
	s := newTestServer(t)
	s.upstream.loginErr = errTransport

	w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "jane@example.com", "password": "secret"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.False(t, s.mr.Exists("lock:login:fail:jane@example.com"))
}

func TestLoginRateLimitPerIP(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 10; i++ {
		w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "jane@example.com", "password": "secret"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "jane@example.com", "password": "secret"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLoginValidation(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDoesNotOpenSession(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{"name": "Jane", "email": "jane@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Values("Set-Cookie"))
	assert.Equal(t, "/login", decode[map[string]string](t, w)["redirect"])
	require.Len(t, s.upstream.registers, 1)
	assert.Equal(t, "jane@example.com", s.upstream.registers[0].Email)
}

func TestLogoutClearsSessionBeforeResponding(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	sid := s.login(t)
	_, err := s.drafts.Start(ctx, sid, submit.ModeCreate, form.NewForm(), false)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/v1/auth/logout", sid, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, -1, sessionCookieFrom(t, w.Header()).MaxAge)

	_, err = s.sessions.Token(ctx, sid)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	_, err = s.drafts.Get(ctx, sid)
	assert.Error(t, err)
	assert.Equal(t, []string{"attachments/" + sid + "/"}, s.attachments.prefixes)

	w = s.do(t, http.MethodGet, "/v1/auth/user", sid, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserUnauthorizedUpstreamEndsSession(t *testing.T) {
	s := newTestServer(t)
	sid := s.login(t)
	s.upstream.userErr = portfolioapi.ErrUnauthorized

	w := s.do(t, http.MethodGet, "/v1/auth/user", sid, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "/login", body["redirect"])
	assert.Equal(t, "Your session has expired, please log in again.", body["error"])

	_, err := s.sessions.Token(context.Background(), sid)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestSessionRoutesRequireCookie(t *testing.T) {
	s := newTestServer(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/v1/auth/user"},
		{http.MethodPost, "/v1/auth/logout"},
		{http.MethodGet, "/v1/portfolio/status"},
		{http.MethodPost, "/v1/drafts"},
		{http.MethodGet, "/v1/drafts/current"},
		{http.MethodPost, "/v1/drafts/current/submit"},
	} {
		w := s.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
	assert.Zero(t, s.portfolio.existsHits)
	assert.Zero(t, s.submitter.calls)
}
