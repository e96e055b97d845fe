package portfolioapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portfolioHub/internal/config"
	"portfolioHub/internal/form"
	"portfolioHub/internal/portfolio"
)

// ErrUnauthorized is returned when the service rejects the token (HTTP 401).
var ErrUnauthorized = errors.New("portfolio service: unauthorized")

// APIError is a non-2xx answer of the portfolio service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portfolio service returned status %d", e.Status)
	}
	return fmt.Sprintf("portfolio service returned status %d: %s", e.Status, e.Message)
}

// Message extracts the service-supplied message of err, if any.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Client talks to the external portfolio service.
type Client struct {
	baseURL     string
	tokenHeader string
	httpClient  *http.Client
	observe     ObserveFunc
}

// ObserveFunc receives every finished call. endpoint is the path template
// (ids replaced by ":id"); status is 0 when no response arrived.
type ObserveFunc func(method, endpoint string, status int, elapsed time.Duration)

// Option configures a Client.
type Option func(*Client)

// WithObserver reports every call to fn.
func WithObserver(fn ObserveFunc) Option {
	return func(c *Client) { c.observe = fn }
}

// WithHTTPClient replaces the default client built from the timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a client from the upstream settings.
func NewClient(cfg config.UpstreamConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse upstream base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", cfg.BaseURL)
	}

	header := cfg.TokenHeader
	if header == "" {
		header = "x-auth-token"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:     strings.TrimRight(base.String(), "/"),
		tokenHeader: header,
		httpClient:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

// Exists reports whether the token's user already owns a portfolio.
func (c *Client) Exists(ctx context.Context, token string) (bool, error) {
	var out existsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/portfolio/exists", token, nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// Get fetches the token user's portfolio record.
func (c *Client) Get(ctx context.Context, token string) (portfolio.Record, error) {
	var rec portfolio.Record
	if err := c.doJSON(ctx, http.MethodGet, "/api/portfolio", token, nil, &rec); err != nil {
		return portfolio.Record{}, err
	}
	return rec, nil
}

type createResponse struct {
	User string `json:"user"`
}

// Create posts a new portfolio and returns the owning user id.
func (c *Client) Create(ctx context.Context, token string, fields []form.Field, file *form.FilePart) (string, error) {
	var out createResponse
	if err := c.doMultipart(ctx, http.MethodPost, token, fields, file, &out); err != nil {
		return "", err
	}
	return out.User, nil
}

// Update replaces the token user's portfolio. A nil file keeps the stored PDF.
func (c *Client) Update(ctx context.Context, token string, fields []form.Field, file *form.FilePart) error {
	return c.doMultipart(ctx, http.MethodPut, token, fields, file, nil)
}

// Public returns the public projection of a user's portfolio as sent by the service.
func (c *Client) Public(ctx context.Context, userID string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/portfolio/public/"+url.PathEscape(userID), "", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Download is a streamed PDF. The caller closes Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Disposition   string
}

// Download opens the PDF of the portfolio id.
func (c *Client) Download(ctx context.Context, id string) (*Download, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/portfolio/download/"+url.PathEscape(id), "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("download portfolio pdf: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Download{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Disposition:   resp.Header.Get("Content-Disposition"),
	}, nil
}

// Contact relays a visitor message to the portfolio owner.
func (c *Client) Contact(ctx context.Context, msg portfolio.ContactMessage) error {
	return c.doJSON(ctx, http.MethodPost, "/api/contact", "", msg, nil)
}

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/register", "", reg, nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a service token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login response carries no token")
	}
	return out.Token, nil
}

// CurrentUser returns the account owning token.
func (c *Client) CurrentUser(ctx context.Context, token string) (portfolio.User, error) {
	var user portfolio.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/user", token, nil, &user); err != nil {
		return portfolio.User{}, err
	}
	return user, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(c.tokenHeader, token)
	}
	if id := CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) doMultipart(ctx context.Context, method, token string, fields []form.Field, file *form.FilePart, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := form.WriteMultipart(mw, fields, file)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, method, "/api/portfolio", token, pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

// send performs req and reports it to the observer.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observe != nil {
		status := 0
		if err == nil {
			status = resp.StatusCode
		}
		c.observe(req.Method, endpointOf(req.URL.Path), status, time.Since(start))
	}
	return resp, err
}

var idEndpoints = []string{"/api/portfolio/public/", "/api/portfolio/download/"}

func endpointOf(path string) string {
	for _, prefix := range idEndpoints {
		if strings.HasPrefix(path, prefix) {
			return prefix + ":id"
		}
	}
	return path
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

const maxErrorBody = 64 << 10

func decodeError(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Status: resp.StatusCode, Message: extractMessage(data)}
}

// extractMessage reads the service's error text from msg, message or error,
// falling back to a short plain-text body.
func extractMessage(data []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, key := range []string{"msg", "message", "error"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		// express-validator style {errors:[{msg}]}
		if list, ok := payload["errors"].([]any); ok && len(list) > 0 {
			if first, ok := list[0].(map[string]any); ok {
				if s, ok := first["msg"].(string); ok {
					return strings.TrimSpace(s)
				}
			}
		}
		return ""
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
