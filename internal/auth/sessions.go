package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"portfolioHub/internal/portfolio"
	"portfolioHub/internal/portfolioapi"
)

// ErrNotAuthenticated means the session holds no usable token. Callers must
// not contact the portfolio service on behalf of such a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Upstream is the part of the portfolio service the session layer needs.
type Upstream interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, reg portfolioapi.Registration) error
	CurrentUser(ctx context.Context, token string) (portfolio.User, error)
}

// Sessions binds browser sessions to portfolio service tokens.
type Sessions struct {
	store    TokenStore
	upstream Upstream
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	users singleflight.Group
}

// NewSessions wires the token store and the upstream client.
func NewSessions(store TokenStore, upstream Upstream, ttl time.Duration, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		store:    store,
		upstream: upstream,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Login authenticates against the service and opens a new session holding
// the returned token.
func (s *Sessions) Login(ctx context.Context, email, password string) (string, error) {
	token, err := s.upstream.Login(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	ttl := s.ttl
	if exp, ok := tokenExpiry(token); ok {
		remaining := exp.Sub(s.now())
		if remaining <= 0 {
			return "", fmt.Errorf("login: %w: token already expired", ErrNotAuthenticated)
		}
		ttl = min(ttl, remaining)
	}

	sessionID := uuid.NewString()
	if err := s.store.Set(ctx, sessionID, token, ttl); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}
	s.logger.Info("session opened", slog.String("session_id", sessionID))
	return sessionID, nil
}

// Register creates an account. The user logs in afterwards.
func (s *Sessions) Register(ctx context.Context, name, email, password string) error {
	if err := s.upstream.Register(ctx, portfolioapi.Registration{Name: name, Email: email, Password: password}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Logout deletes the session token. Once it returns, Token reports
// ErrNotAuthenticated for sessionID.
func (s *Sessions) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	s.logger.Info("session closed", slog.String("session_id", sessionID))
	return nil
}

// Token returns the service token of the session. Expired tokens are
// dropped and reported as ErrNotAuthenticated.
func (s *Sessions) Token(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrNotAuthenticated
	}
	token, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if exp, ok := tokenExpiry(token); ok && !exp.After(s.now()) {
		if err := s.store.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("drop expired token failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// Invalidate clears the session after the service rejected its token.
func (s *Sessions) Invalidate(ctx context.Context, sessionID string) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("invalidate session failed", slog.String("session_id", sessionID), slog.Any("error", err))
		return
	}
	s.logger.Info("session invalidated", slog.String("session_id", sessionID))
}

// CurrentUser loads the account behind the session. Concurrent calls for
// the same session share one upstream request.
func (s *Sessions) CurrentUser(ctx context.Context, sessionID string) (portfolio.User, error) {
	token, err := s.Token(ctx, sessionID)
	if err != nil {
		return portfolio.User{}, err
	}

	// The shared call outlives any single caller; each caller stops waiting
	// on its own context.
	shared := context.WithoutCancel(ctx)
	ch := s.users.DoChan(sessionID, func() (any, error) {
		return s.upstream.CurrentUser(shared, token)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return portfolio.User{}, ctx.Err()
	case res = <-ch:
	}
	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, portfolioapi.ErrUnauthorized) {
			s.Invalidate(ctx, sessionID)
			return portfolio.User{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
		}
		return portfolio.User{}, fmt.Errorf("load current user: %w", err)
	}
	return v.(portfolio.User), nil
}
