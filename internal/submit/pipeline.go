package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"portfolioHub/internal/errcode"
	"portfolioHub/internal/form"
	"portfolioHub/internal/portfolioapi"
)

// Mode selects create or update.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCreate, ModeUpdate:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown submit mode %q", s)
}

// Generic failure messages shown when the service gives none.
const (
	MsgCreateFailed = "Error creating portfolio"
	MsgUpdateFailed = "Error updating portfolio"
	MsgCreated      = "Portfolio created successfully!"
	MsgUpdated      = "Portfolio updated successfully!"
	MsgSessionEnded = "Your session has expired, please log in again."
)

// LoginPath is where unauthorized outcomes send the browser.
const LoginPath = "/login"

// Outcome is what the browser does next.
type Outcome struct {
	OK       bool   `json:"ok"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	UserID   string `json:"userId,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// Service is the mutating half of the portfolio service.
type Service interface {
	Create(ctx context.Context, token string, fields []form.Field, file *form.FilePart) (string, error)
	Update(ctx context.Context, token string, fields []form.Field, file *form.FilePart) error
}

// AttachmentOpener reads a staged attachment.
type AttachmentOpener interface {
	Open(ctx context.Context, objectKey string) (io.ReadCloser, error)
}

// Pipeline serializes a form and performs exactly one create or update call.
type Pipeline struct {
	service     Service
	attachments AttachmentOpener
	encode      form.EncodeOptions
	logger      *slog.Logger
	observe     func(mode string, ok bool)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEncodeOptions overrides the payload encoding.
func WithEncodeOptions(opts form.EncodeOptions) Option {
	return func(p *Pipeline) { p.encode = opts }
}

// WithObserver registers a callback run once per submission.
func WithObserver(fn func(mode string, ok bool)) Option {
	return func(p *Pipeline) { p.observe = fn }
}

func NewPipeline(service Service, attachments AttachmentOpener, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		service:     service,
		attachments: attachments,
		encode:      form.DefaultEncodeOptions(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit sends f to the portfolio service. It never returns an error and
// never mutates f; failures are reported in the Outcome so the caller can
// keep the form on screen.
func (p *Pipeline) Submit(ctx context.Context, token string, f *form.Form, mode Mode) (out Outcome) {
	logger := p.logger.With(slog.String("mode", string(mode)))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("portfolio submission panicked", slog.Any("panic", r))
			out = failure(mode, errcode.SystemError, "")
		}
		if p.observe != nil {
			p.observe(string(mode), out.OK)
		}
	}()

	if f == nil {
		return failure(mode, errcode.SystemError, "")
	}
	if mode != ModeCreate && mode != ModeUpdate {
		return failure(ModeCreate, errcode.SystemError, "")
	}

	file, closeFile, err := p.openAttachment(ctx, f.Attachment)
	if err != nil {
		logger.Error("open staged attachment failed", slog.Any("error", err))
		return failure(mode, errcode.SystemError, "")
	}
	defer closeFile()

	fields := form.EncodeFields(f, p.encode)

	var userID string
	switch mode {
	case ModeCreate:
		userID, err = p.service.Create(ctx, token, fields, file)
	case ModeUpdate:
		err = p.service.Update(ctx, token, fields, file)
		userID = f.RemoteUser
	}
	if err != nil {
		return p.mapError(logger, mode, err)
	}

	logger.Info("portfolio submitted", slog.String("user_id", userID), slog.Bool("with_pdf", file != nil))
	out = Outcome{OK: true, Code: errcode.OK, UserID: userID, Message: MsgUpdated}
	if mode == ModeCreate {
		out.Message = MsgCreated
	}
	if userID != "" {
		out.Redirect = PublicPath(userID)
	}
	return out
}

func (p *Pipeline) openAttachment(ctx context.Context, a *form.Attachment) (*form.FilePart, func(), error) {
	if a == nil || a.ObjectKey == "" {
		return nil, func() {}, nil
	}
	if p.attachments == nil {
		return nil, nil, errors.New("attachment staging is not configured")
	}
	body, err := p.attachments.Open(ctx, a.ObjectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment %q: %w", a.ObjectKey, err)
	}
	return &form.FilePart{
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Body:        body,
	}, func() { _ = body.Close() }, nil
}

func (p *Pipeline) mapError(logger *slog.Logger, mode Mode, err error) Outcome {
	if errors.Is(err, portfolioapi.ErrUnauthorized) {
		logger.Warn("portfolio submission unauthorized")
		out := failure(mode, errcode.Unauthorized, MsgSessionEnded)
		out.Redirect = LoginPath
		return out
	}

	var apiErr *portfolioapi.APIError
	if errors.As(err, &apiErr) {
		logger.Warn("portfolio service rejected submission",
			slog.Int("status", apiErr.Status),
			slog.String("message", apiErr.Message),
		)
		return failure(mode, errcode.UpstreamRejected, apiErr.Message)
	}

	logger.Error("portfolio submission failed", slog.Any("error", err))
	return failure(mode, errcode.UpstreamUnavailable, "")
}

func failure(mode Mode, code int, msg string) Outcome {
	if msg == "" {
		msg = MsgCreateFailed
		if mode == ModeUpdate {
			msg = MsgUpdateFailed
		}
	}
	return Outcome{OK: false, Code: code, Message: msg}
}

// PublicPath is the browser route of a user's public portfolio.
func PublicPath(userID string) string {
	return "/portfolio/public/" + url.PathEscape(userID)
}
