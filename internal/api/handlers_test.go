package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"portfolioHub/internal/auth"
	"portfolioHub/internal/config"
	"portfolioHub/internal/drafts"
	"portfolioHub/internal/form"
	"portfolioHub/internal/portfolio"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/probe"
	"portfolioHub/internal/submit"
)

const testCookie = "portfolio_session"

type fakeUpstream struct {
	mu        sync.Mutex
	token     string
	loginErr  error
	userErr   error
	registers []portfolioapi.Registration
}

func (f *fakeUpstream) Login(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.loginErr
}

func (f *fakeUpstream) Register(_ context.Context, reg portfolioapi.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers = append(f.registers, reg)
	return nil
}

func (f *fakeUpstream) CurrentUser(_ context.Context, _ string) (portfolio.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return portfolio.User{}, f.userErr
	}
	return portfolio.User{ID: "u1", Name: "Jane", Email: "jane@example.com"}, nil
}

type fakePortfolio struct {
	mu         sync.Mutex
	exists     bool
	existsErr  error
	existsHits int
	record     portfolio.Record
	getErr     error
	getHits    int
	public     json.RawMessage
	publicErr  error
	pdf        []byte
	pdfErr     error
}

func (f *fakePortfolio) Exists(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsHits++
	return f.exists, f.existsErr
}

func (f *fakePortfolio) Get(context.Context, string) (portfolio.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getHits++
	return f.record, f.getErr
}

func (f *fakePortfolio) Public(context.Context, string) (json.RawMessage, error) {
	return f.public, f.publicErr
}

func (f *fakePortfolio) Download(context.Context, string) (*portfolioapi.Download, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return &portfolioapi.Download{
		Body:          io.NopCloser(bytes.NewReader(f.pdf)),
		ContentType:   "application/pdf",
		ContentLength: int64(len(f.pdf)),
		Disposition:   `attachment; filename="portfolio.pdf"`,
	}, nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	outcome submit.Outcome
	calls   int
	tokens  []string
}

func (f *fakeSubmitter) Submit(_ context.Context, token string, _ *form.Form, _ submit.Mode) submit.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, token)
	return f.outcome
}

type fakeIntake struct {
	err error
	n   int
}

func (f *fakeIntake) Accept(_ context.Context, sessionID, filename string, r io.Reader) (*form.Attachment, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(r)
	f.n++
	return &form.Attachment{
		ObjectKey:   "attachments/" + sessionID + "/" + strings.Repeat("x", f.n) + ".pdf",
		Filename:    filename,
		Size:        int64(len(data)),
		ContentType: "application/pdf",
	}, nil
}

type fakeAttachments struct {
	mu       sync.Mutex
	deleted  []string
	prefixes []string
}

func (f *fakeAttachments) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://files.example/" + objectKey + "?sig=1", nil
}

func (f *fakeAttachments) DeleteObject(_ context.Context, objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectKey)
	return nil
}

func (f *fakeAttachments) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-" + strings.Repeat("1", len(f.tasks)), Type: task.Type()}, nil
}

type testServer struct {
	router      *gin.Engine
	mr          *miniredis.Miniredis
	upstream    *fakeUpstream
	portfolio   *fakePortfolio
	submitter   *fakeSubmitter
	intake      *fakeIntake
	attachments *fakeAttachments
	queue       *fakeQueue
	tokens      *auth.MemoryTokenStore
	sessions    *auth.Sessions
	drafts      *drafts.Service
	probes      *probe.Registry
}

func testConfig() *config.Config {
	return &config.Config{
		Session: config.SessionConfig{
			CookieName:         testCookie,
			TTL:                time.Hour,
			LoginRateLimit:     10,
			LoginLockThreshold: 3,
			LoginLockTTL:       15 * time.Minute,
		},
		Probe:      config.ProbeConfig{Debounce: 5 * time.Millisecond, Wait: 2 * time.Second},
		Attachment: config.AttachmentConfig{MaxBytes: 1 << 20},
		Contact:    config.ContactConfig{RateLimit: 2, RateWindow: time.Hour},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStore(t, drafts.NewMemoryStore())
}

func newTestServerWithStore(t *testing.T, store drafts.Store) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := testConfig()
	s := &testServer{
		mr:          mr,
		upstream:    &fakeUpstream{token: "tok-1"},
		portfolio:   &fakePortfolio{},
		submitter:   &fakeSubmitter{},
		intake:      &fakeIntake{},
		attachments: &fakeAttachments{},
		queue:       &fakeQueue{},
		tokens:      auth.NewMemoryTokenStore(),
		probes:      probe.NewRegistry(probe.Options{Debounce: cfg.Probe.Debounce}),
	}
	s.sessions = auth.NewSessions(s.tokens, s.upstream, cfg.Session.TTL, nil)
	s.drafts = drafts.NewService(store, s.attachments, nil)
	t.Cleanup(func() { s.probes.Prune(-time.Hour) })

	s.router = gin.New()
	RegisterRoutes(s.router, Dependencies{
		Config:      cfg,
		Sessions:    s.sessions,
		Portfolio:   s.portfolio,
		Drafts:      s.drafts,
		Probes:      s.probes,
		Submitter:   s.submitter,
		Intake:      s.intake,
		Attachments: s.attachments,
		Redis:       redisClient,
		Queue:       s.queue,
	})
	return s
}

// login opens a session directly through the session service.
func (s *testServer) login(t *testing.T) string {
	t.Helper()
	id, err := s.sessions.Login(context.Background(), "jane@example.com", "secret")
	require.NoError(t, err)
	return id
}

func (s *testServer) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: sessionID})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var errTransport = errors.New("dial tcp: connection refused")
