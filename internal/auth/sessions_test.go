package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioHub/internal/portfolio"
	"portfolioHub/internal/portfolioapi"
)

type fakeUpstream struct {
	token     string
	loginErr  error
	userErr   error
	userCalls atomic.Int32
	release   chan struct{}
	registers []portfolioapi.Registration
}

func (f *fakeUpstream) Login(ctx context.Context, email, password string) (string, error) {
	return f.token, f.loginErr
}

func (f *fakeUpstream) Register(ctx context.Context, reg portfolioapi.Registration) error {
	f.registers = append(f.registers, reg)
	return nil
}

func (f *fakeUpstream) CurrentUser(ctx context.Context, token string) (portfolio.User, error) {
	f.userCalls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return portfolio.User{}, ctx.Err()
		}
	}
	if f.userErr != nil {
		return portfolio.User{}, f.userErr
	}
	return portfolio.User{ID: "u1", Name: "Jane"}, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return token
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	up := &fakeUpstream{token: "opaque-token"}
	sessions := NewSessions(NewMemoryTokenStore(), up, time.Hour, nil)

	id, err := sessions.Login(ctx, "jane@example.com", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	token, err := sessions.Token(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	require.NoError(t, sessions.Logout(ctx, id))
	_, err = sessions.Token(ctx, id)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestTokenWithoutSession(t *testing.T) {
	sessions := NewSessions(NewMemoryTokenStore(), &fakeUpstream{}, time.Hour, nil)

	_, err := sessions.Token(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = sessions.CurrentUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLoginFailure(t *testing.T) {
	up := &fakeUpstream{loginErr: &portfolioapi.APIError{Status: 400, Message: "Invalid Credentials"}}
	sessions := NewSessions(NewMemoryTokenStore(), up, time.Hour, nil)

	_, err := sessions.Login(context.Background(), "jane@example.com", "bad")
	assert.Equal(t, "Invalid Credentials", portfolioapi.Message(err))
}

func TestExpiredTokenIsDropped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	sessions := NewSessions(store, &fakeUpstream{}, time.Hour, nil)

	require.NoError(t, store.Set(ctx, "s1", signedToken(t, time.Now().Add(-time.Minute)), 0))

	_, err := sessions.Token(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLoginCapsTTLAtTokenExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	up := &fakeUpstream{token: signedToken(t, now.Add(10*time.Minute))}
	sessions := NewSessions(store, up, 24*time.Hour, nil)
	sessions.now = func() time.Time { return now }

	id, err := sessions.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)

	store.now = func() time.Time { return now.Add(11 * time.Minute) }
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCurrentUserUnauthorizedClearsSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	up := &fakeUpstream{userErr: portfolioapi.ErrUnauthorized}
	sessions := NewSessions(store, up, time.Hour, nil)
	require.NoError(t, store.Set(ctx, "s1", "tok", time.Hour))

	_, err := sessions.CurrentUser(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, err, portfolioapi.ErrUnauthorized)

	_, err = sessions.Token(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCurrentUserTransportErrorKeepsSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	up := &fakeUpstream{userErr: errors.New("connection refused")}
	sessions := NewSessions(store, up, time.Hour, nil)
	require.NoError(t, store.Set(ctx, "s1", "tok", time.Hour))

	_, err := sessions.CurrentUser(ctx, "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAuthenticated)

	token, err := sessions.Token(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestCurrentUserCoalescesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	up := &fakeUpstream{release: make(chan struct{})}
	sessions := NewSessions(store, up, time.Hour, nil)
	require.NoError(t, store.Set(ctx, "s1", "tok", time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := sessions.CurrentUser(ctx, "s1")
			assert.NoError(t, err)
			assert.Equal(t, "u1", user.ID)
		}()
	}

	require.Eventually(t, func() bool { return up.userCalls.Load() >= 1 }, time.Second, time.Millisecond)
	// let the other callers join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(up.release)
	wg.Wait()

	assert.LessOrEqual(t, up.userCalls.Load(), int32(2))
}

func TestCurrentUserJoinedCallerSurvivesFirstCancel(t *testing.T) {
	store := NewMemoryTokenStore()
	up := &fakeUpstream{release: make(chan struct{})}
	sessions := NewSessions(store, up, time.Hour, nil)
	require.NoError(t, store.Set(context.Background(), "s1", "tok", time.Hour))

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := sessions.CurrentUser(firstCtx, "s1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return up.userCalls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		user portfolio.User
		err  error
	}
	second := make(chan result, 1)
	go func() {
		user, err := sessions.CurrentUser(context.Background(), "s1")
		second <- result{user, err}
	}()
	// let the second caller join the in-flight call
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(up.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "u1", got.user.ID)
	assert.Equal(t, int32(1), up.userCalls.Load())
}

func TestRegister(t *testing.T) {
	up := &fakeUpstream{}
	sessions := NewSessions(NewMemoryTokenStore(), up, time.Hour, nil)

	require.NoError(t, sessions.Register(context.Background(), "Jane", "jane@example.com", "pw"))
	require.Len(t, up.registers, 1)
	assert.Equal(t, "jane@example.com", up.registers[0].Email)
}

func TestRedisTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisTokenStore(client)
	ctx := context.Background()

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, store.Set(ctx, "s1", "tok", time.Minute))
	assert.True(t, mr.Exists("session:token:s1"))
	token, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, store.Set(ctx, "s2", "tok", time.Minute))
	require.NoError(t, store.Delete(ctx, "s2"))
	assert.False(t, mr.Exists("session:token:s2"))
}
