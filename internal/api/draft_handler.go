package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"portfolioHub/internal/api/middleware"
	"portfolioHub/internal/attachment"
	"portfolioHub/internal/drafts"
	"portfolioHub/internal/errcode"
	"portfolioHub/internal/form"
	"portfolioHub/internal/probe"
	"portfolioHub/internal/submit"
)

const (
	msgFixErrors     = "Please fix the errors in the form before submitting."
	msgNoDraft       = "no portfolio draft in progress"
	previewURLExpiry = 15 * time.Minute
)

var errFormInvalid = errors.New("form has validation errors")

// Submitter sends a finished form to the portfolio service.
type Submitter interface {
	Submit(ctx context.Context, token string, f *form.Form, mode submit.Mode) submit.Outcome
}

// AttachmentIntake validates and stages an uploaded PDF.
type AttachmentIntake interface {
	Accept(ctx context.Context, sessionID, filename string, r io.Reader) (*form.Attachment, error)
}

// AttachmentStore reads back and removes staged PDFs.
type AttachmentStore interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// DraftHandler exposes the session's in-progress portfolio form.
type DraftHandler struct {
	drafts      *drafts.Service
	portfolio   PortfolioReader
	submitter   Submitter
	intake      AttachmentIntake
	attachments AttachmentStore
	probes      *probe.Registry
	ender       sessionEnder
	maxBytes    int64
}

func NewDraftHandler(
	service *drafts.Service,
	reader PortfolioReader,
	submitter Submitter,
	intake AttachmentIntake,
	attachments AttachmentStore,
	probes *probe.Registry,
	ender sessionEnder,
	maxBytes int64,
) *DraftHandler {
	return &DraftHandler{
		drafts:      service,
		portfolio:   reader,
		submitter:   submitter,
		intake:      intake,
		attachments: attachments,
		probes:      probes,
		ender:       ender,
		maxBytes:    maxBytes,
	}
}

type draftView struct {
	Mode        submit.Mode         `json:"mode"`
	Values      form.Values         `json:"values"`
	Errors      form.ErrorAggregate `json:"errors"`
	Valid       bool                `json:"valid"`
	Hydrated    bool                `json:"hydrated"`
	DownloadURL string              `json:"downloadUrl,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func viewOf(d *drafts.Draft) draftView {
	v := draftView{
		Mode:      d.Mode,
		Values:    d.Form.Values(),
		Errors:    d.Form.Errors(),
		Valid:     d.Form.Valid(),
		Hydrated:  d.Hydrated,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Form.RemoteID != "" {
		v.DownloadURL = "/v1/portfolio/download/" + d.Form.RemoteID
	}
	return v
}

type startRequest struct {
	Mode string `json:"mode" binding:"required,oneof=create update"`
}

// Start opens a draft. The update flow hydrates it from the stored
// portfolio; when that read fails the form starts empty.
func (h *DraftHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	mode, err := submit.ParseMode(req.Mode)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	f, hydrated := form.NewForm(), false

	if mode == submit.ModeUpdate {
		rec, err := h.portfolio.Get(ctx, middleware.SessionToken(c))
		switch {
		case err == nil:
			f, hydrated = form.FromRemote(rec), true
		case isSessionRejected(err):
			h.ender.end(c)
			return
		default:
			logger.Warn("load portfolio for edit failed, starting empty", slog.Any("error", err))
		}
	}

	d, err := h.drafts.Start(ctx, middleware.SessionID(c), mode, f, hydrated)
	if err != nil {
		logger.Error("start draft failed", slog.Any("error", err))
		Internal(c, "failed to start draft")
		return
	}
	c.JSON(http.StatusCreated, viewOf(d))
}

// Get returns the draft with its errors and validity.
func (h *DraftHandler) Get(c *gin.Context) {
	d, err := h.drafts.Get(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.draftError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(d))
}

// Discard drops the draft on navigation away.
func (h *DraftHandler) Discard(c *gin.Context) {
	if err := h.drafts.Discard(c.Request.Context(), middleware.SessionID(c)); err != nil {
		h.draftError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type fieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// SetField updates title, description or one of the portfolio links.
func (h *DraftHandler) SetField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.update(c, http.StatusOK, func(d *drafts.Draft) error {
		return d.Form.SetField(req.Field, req.Value)
	})
}

// AddEntry appends a blank entry to a group.
func (h *DraftHandler) AddEntry(c *gin.Context) {
	kind, err := form.ParseGroupKind(c.Param("group"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	h.update(c, http.StatusCreated, func(d *drafts.Draft) error {
		_, err := d.Form.AddEntry(kind)
		return err
	})
}

// RemoveEntry deletes one entry; later entries move down.
func (h *DraftHandler) RemoveEntry(c *gin.Context) {
	kind, index, ok := entryPath(c)
	if !ok {
		return
	}
	h.update(c, http.StatusOK, func(d *drafts.Draft) error {
		return d.Form.RemoveEntry(kind, index)
	})
}

type entryFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
	// Blur validates Value without storing it.
	Blur bool `json:"blur"`
}

// UpdateEntry sets or blur-validates one field of an entry.
func (h *DraftHandler) UpdateEntry(c *gin.Context) {
	kind, index, ok := entryPath(c)
	if !ok {
		return
	}
	var req entryFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.update(c, http.StatusOK, func(d *drafts.Draft) error {
		if req.Blur {
			return d.Form.BlurEntryField(kind, index, req.Field, req.Value)
		}
		return d.Form.UpdateEntryField(kind, index, req.Field, req.Value)
	})
}

// ValidateAll surfaces errors on every field, touched or not.
func (h *DraftHandler) ValidateAll(c *gin.Context) {
	h.update(c, http.StatusOK, func(d *drafts.Draft) error {
		d.Form.ValidateAll()
		return nil
	})
}

// PutAttachment validates an uploaded PDF, stages it and references it
// from the draft. A previously staged PDF is removed.
func (h *DraftHandler) PutAttachment(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.SessionID(c)
	logger := middleware.LoggerFromContext(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	file, err := c.FormFile(form.AttachmentField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLarge(c, attachment.ErrTooLarge.Error())
			return
		}
		BadRequest(c, "missing pdf file")
		return
	}
	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	staged, err := h.intake.Accept(ctx, sessionID, file.Filename, reader)
	if err != nil {
		h.attachmentError(c, err)
		return
	}

	var replaced *form.Attachment
	d, err := h.drafts.Update(ctx, sessionID, func(d *drafts.Draft) error {
		replaced = d.Form.ClearAttachment()
		d.Form.SetAttachment(staged)
		return nil
	})
	if err != nil {
		h.deleteStaged(ctx, logger, staged)
		h.draftError(c, err)
		return
	}
	h.deleteStaged(ctx, logger, replaced)
	c.JSON(http.StatusOK, viewOf(d))
}

// GetAttachment returns a short-lived preview link for the staged PDF.
func (h *DraftHandler) GetAttachment(c *gin.Context) {
	ctx := c.Request.Context()
	d, err := h.drafts.Get(ctx, middleware.SessionID(c))
	if err != nil {
		h.draftError(c, err)
		return
	}
	a := d.Form.Attachment
	if a == nil {
		NotFound(c, "no pdf attached")
		return
	}

	url, err := h.attachments.GeneratePresignedURL(ctx, a.ObjectKey, previewURLExpiry)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate presigned url failed", slog.Any("error", err))
		Internal(c, "failed to generate preview link")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       url,
		"filename":  a.Filename,
		"size":      a.Size,
		"expiresAt": time.Now().Add(previewURLExpiry).UTC(),
	})
}

// DeleteAttachment drops the staged PDF. On update the stored PDF is kept.
func (h *DraftHandler) DeleteAttachment(c *gin.Context) {
	ctx := c.Request.Context()
	var removed *form.Attachment
	d, err := h.drafts.Update(ctx, middleware.SessionID(c), func(d *drafts.Draft) error {
		removed = d.Form.ClearAttachment()
		return nil
	})
	if err != nil {
		h.draftError(c, err)
		return
	}
	h.deleteStaged(ctx, middleware.LoggerFromContext(c), removed)
	c.JSON(http.StatusOK, viewOf(d))
}

type submitResponse struct {
	submit.Outcome
	Errors *form.ErrorAggregate `json:"errors,omitempty"`
}

// Submit sends a valid draft to the portfolio service. An invalid draft is
// answered with 422 and left as it was; a successful submission discards it.
func (h *DraftHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.SessionID(c)
	token := middleware.SessionToken(c)

	var out submit.Outcome
	d, err := h.drafts.Do(ctx, sessionID, func(d *drafts.Draft) (drafts.Action, error) {
		if !d.Form.Valid() {
			return drafts.Keep, errFormInvalid
		}
		out = h.submitter.Submit(ctx, token, d.Form, d.Mode)
		if out.OK {
			return drafts.Discard, nil
		}
		return drafts.Keep, nil
	})
	switch {
	case errors.Is(err, errFormInvalid):
		errs := d.Form.Errors()
		c.JSON(http.StatusUnprocessableEntity, submitResponse{
			Outcome: submit.Outcome{Code: errcode.ValidationFailed, Message: msgFixErrors},
			Errors:  &errs,
		})
		return
	case errors.Is(err, drafts.ErrDiscardFailed):
		middleware.LoggerFromContext(c).Error("discard submitted draft failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	case err != nil:
		h.draftError(c, err)
		return
	}

	if out.OK {
		// A new portfolio changes the probe's answer.
		h.probes.Release(sessionID)
		c.JSON(http.StatusOK, submitResponse{Outcome: out})
		return
	}
	if out.Code == errcode.Unauthorized {
		h.ender.end(c)
		return
	}
	c.JSON(outcomeStatus(out.Code), submitResponse{Outcome: out})
}

func outcomeStatus(code int) int {
	switch code {
	case errcode.UpstreamRejected:
		return http.StatusBadRequest
	case errcode.UpstreamUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *DraftHandler) update(c *gin.Context, status int, fn func(*drafts.Draft) error) {
	d, err := h.drafts.Update(c.Request.Context(), middleware.SessionID(c), fn)
	if err != nil {
		h.draftError(c, err)
		return
	}
	c.JSON(status, viewOf(d))
}

func (h *DraftHandler) draftError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, drafts.ErrNotFound):
		NotFound(c, msgNoDraft)
	case errors.Is(err, form.ErrIndexOutOfRange):
		NotFound(c, err.Error())
	case errors.Is(err, form.ErrUnknownField), errors.Is(err, form.ErrUnknownGroup):
		BadRequest(c, err.Error())
	default:
		middleware.LoggerFromContext(c).Error("draft operation failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}

func (h *DraftHandler) attachmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attachment.ErrTooLarge):
		RequestTooLarge(c, err.Error())
	case errors.Is(err, attachment.ErrNotPDF):
		UnsupportedMediaType(c, "only PDF files are accepted")
	case errors.Is(err, attachment.ErrEmpty), errors.Is(err, attachment.ErrMalformed):
		BadRequest(c, err.Error())
	case errors.Is(err, attachment.ErrInfected):
		Unprocessable(c, "malicious file detected")
	default:
		middleware.LoggerFromContext(c).Error("stage attachment failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
	}
}

func (h *DraftHandler) deleteStaged(ctx context.Context, logger *slog.Logger, a *form.Attachment) {
	if a == nil {
		return
	}
	if err := h.attachments.DeleteObject(ctx, a.ObjectKey); err != nil {
		logger.Warn("delete staged attachment failed",
			slog.String("object_key", a.ObjectKey),
			slog.Any("error", err),
		)
	}
}

func entryPath(c *gin.Context) (form.GroupKind, int, bool) {
	kind, err := form.ParseGroupKind(c.Param("group"))
	if err != nil {
		NotFound(c, err.Error())
		return "", 0, false
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		BadRequest(c, "entry index must be a number")
		return "", 0, false
	}
	return kind, index, true
}
