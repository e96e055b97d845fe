package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"portfolioHub/internal/api/middleware"
	"portfolioHub/internal/portfolio"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/probe"
	"portfolioHub/internal/storage"
)

const (
	loginRateKeyPrefix = "rate:login:"
	loginLockKeyPrefix = "lock:login:"
	loginFailKeyPrefix = "lock:login:fail:"

	msgInvalidCredentials = "Invalid credentials"
)

// SessionService is the session API the handlers need.
type SessionService interface {
	SessionInvalidator
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, name, email, password string) error
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (portfolio.User, error)
}

// DraftDiscarder drops a session's draft.
type DraftDiscarder interface {
	Discard(ctx context.Context, sessionID string) error
}

// PrefixRemover deletes every staged object under a key prefix.
type PrefixRemover interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// LoginLimits throttles password guessing.
type LoginLimits struct {
	PerHour       int
	LockThreshold int
	LockTTL       time.Duration
}

// AuthHandler handles registration, login, logout and the current user.
type AuthHandler struct {
	sessions    SessionService
	drafts      DraftDiscarder
	probes      *probe.Registry
	attachments PrefixRemover
	redis       redis.UniversalClient
	logger      *slog.Logger
	cookie      SessionCookie
	ender       sessionEnder
	limits      LoginLimits
	now         func() time.Time
}

func NewAuthHandler(
	sessions SessionService,
	drafts DraftDiscarder,
	probes *probe.Registry,
	attachments PrefixRemover,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	cookie SessionCookie,
	limits LoginLimits,
) *AuthHandler {
	return &AuthHandler{
		sessions:    sessions,
		drafts:      drafts,
		probes:      probes,
		attachments: attachments,
		redis:       redisClient,
		logger:      logger,
		cookie:      cookie,
		ender:       sessionEnder{sessions: sessions, probes: probes, cookie: cookie},
		limits:      limits,
		now:         time.Now,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// Register creates an account with the portfolio service. No session is
// opened; the browser continues to the login page.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	logger := h.loggerFromContext(c)
	if err := h.sessions.Register(c.Request.Context(), strings.TrimSpace(req.Name), normalizeEmail(req.Email), req.Password); err != nil {
		logger.Info("register failed", slog.Any("error", err))
		upstreamError(c, err, "Registration failed")
		return
	}

	logger.Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "redirect": "/login"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login opens a session and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(req.Email)
	logger := h.loggerFromContext(c)

	if !allowWithinWindow(ctx, h.redis, loginRateKeyPrefix+c.ClientIP(), h.limits.PerHour, time.Hour, h.now()) {
		TooManyRequests(c, "rate limit exceeded")
		return
	}
	if h.redis != nil {
		if ttl, _ := h.redis.TTL(ctx, loginLockKeyPrefix+email).Result(); ttl > 0 {
			TooManyRequests(c, "account temporarily locked")
			return
		}
	}

	sessionID, err := h.sessions.Login(ctx, email, req.Password)
	if err != nil {
		if rejectedCredentials(err) {
			logger.Info("login rejected", slog.Any("error", err))
			_ = h.incrementLoginFail(ctx, email)
			msg := portfolioapi.Message(err)
			if msg == "" {
				msg = msgInvalidCredentials
			}
			Error(c, http.StatusUnauthorized, msg)
			return
		}
		logger.Error("login failed", slog.Any("error", err))
		BadGateway(c, "login is unavailable, please try again")
		return
	}

	if h.redis != nil {
		_ = h.redis.Del(ctx, loginFailKeyPrefix+email).Err()
	}
	h.cookie.set(c, sessionID)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful"})
}

// Logout closes the session. The token is gone before the response is
// written; the draft, probe and staged uploads of the session go with it.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.SessionID(c)
	logger := h.loggerFromContext(c)

	if err := h.sessions.Logout(ctx, sessionID); err != nil {
		logger.Error("logout failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.cookie.clear(c)
	if h.probes != nil {
		h.probes.Release(sessionID)
	}
	if h.drafts != nil {
		if err := h.drafts.Discard(ctx, sessionID); err != nil {
			logger.Warn("discard draft on logout failed", slog.Any("error", err))
		}
	}
	if h.attachments != nil {
		if err := h.attachments.DeletePrefix(ctx, storage.SessionPrefix(sessionID)); err != nil {
			logger.Warn("delete staged attachments on logout failed", slog.Any("error", err))
		}
	}

	c.Status(http.StatusNoContent)
}

// User returns the account behind the session.
func (h *AuthHandler) User(c *gin.Context) {
	user, err := h.sessions.CurrentUser(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		if isSessionRejected(err) {
			h.ender.end(c)
			return
		}
		upstreamError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	if h.redis == nil {
		return nil
	}
	count, err := incrWithTTL(ctx, h.redis, loginFailKeyPrefix+email, h.limits.LockTTL)
	if err != nil {
		return err
	}
	if count >= int64(h.limits.LockThreshold) {
		return h.redis.Set(ctx, loginLockKeyPrefix+email, "1", h.limits.LockTTL).Err()
	}
	return nil
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// rejectedCredentials reports a login refused by the service, as opposed to
// the service being unreachable.
func rejectedCredentials(err error) bool {
	if errors.Is(err, portfolioapi.ErrUnauthorized) {
		return true
	}
	var apiErr *portfolioapi.APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
