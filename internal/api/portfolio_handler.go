package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"portfolioHub/internal/api/middleware"
	"portfolioHub/internal/portfolio"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/probe"
)

// EditPath is where the browser goes when a portfolio already exists.
const EditPath = "/portfolio/edit"

// PortfolioReader is the read side of the portfolio service.
type PortfolioReader interface {
	Exists(ctx context.Context, token string) (bool, error)
	Get(ctx context.Context, token string) (portfolio.Record, error)
	Public(ctx context.Context, userID string) (json.RawMessage, error)
	Download(ctx context.Context, id string) (*portfolioapi.Download, error)
}

// PortfolioHandler serves the existence probe and the public pages.
type PortfolioHandler struct {
	tokens    middleware.TokenSource
	portfolio PortfolioReader
	probes    *probe.Registry
	ender     sessionEnder
	wait      time.Duration
}

func NewPortfolioHandler(tokens middleware.TokenSource, reader PortfolioReader, probes *probe.Registry, ender sessionEnder, wait time.Duration) *PortfolioHandler {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &PortfolioHandler{tokens: tokens, portfolio: reader, probes: probes, ender: ender, wait: wait}
}

type statusResponse struct {
	State    string `json:"state"`
	Redirect string `json:"redirect,omitempty"`
}

// Status triggers the session's existence probe and waits briefly for it.
// "unknown" means the check is still running and the browser should ask
// again; "exists" carries the edit page as redirect.
func (h *PortfolioHandler) Status(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	p := h.probes.Get(sessionID, h.existsCheck(sessionID))
	p.Trigger()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.wait)
	defer cancel()
	state := p.Wait(ctx)

	if err := p.Err(); state != probe.Unknown && err != nil {
		if isSessionRejected(err) {
			h.ender.end(c)
			return
		}
		middleware.LoggerFromContext(c).Warn("portfolio existence check failed", slog.Any("error", err))
		// Next visit checks again.
		h.probes.Release(sessionID)
	}

	resp := statusResponse{State: state.String()}
	if state == probe.Exists {
		resp.Redirect = EditPath
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PortfolioHandler) existsCheck(sessionID string) probe.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		token, err := h.tokens.Token(ctx, sessionID)
		if err != nil {
			return false, err
		}
		return h.portfolio.Exists(ctx, token)
	}
}

// Public relays the public profile of userID.
func (h *PortfolioHandler) Public(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		BadRequest(c, "user id is required")
		return
	}

	raw, err := h.portfolio.Public(c.Request.Context(), userID)
	if err != nil {
		upstreamError(c, err, "failed to load portfolio")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// Download streams the portfolio PDF from the service.
func (h *PortfolioHandler) Download(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		BadRequest(c, "portfolio id is required")
		return
	}

	dl, err := h.portfolio.Download(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, portfolioapi.ErrUnauthorized) {
			Error(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		upstreamError(c, err, "failed to download portfolio")
		return
	}
	defer dl.Body.Close()

	headers := map[string]string{}
	if dl.Disposition != "" {
		headers["Content-Disposition"] = dl.Disposition
	}
	c.DataFromReader(http.StatusOK, dl.ContentLength, dl.ContentType, dl.Body, headers)
}
