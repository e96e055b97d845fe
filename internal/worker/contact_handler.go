package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"

	"portfolioHub/internal/metrics"
	"portfolioHub/internal/portfolio"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/tasks"
)

// ContactSender delivers a contact message to the portfolio service.
type ContactSender interface {
	Contact(ctx context.Context, msg portfolio.ContactMessage) error
}

// ContactRelayHandler consumes contact relay tasks.
type ContactRelayHandler struct {
	sender ContactSender
	logger *slog.Logger
}

func NewContactRelayHandler(sender ContactSender, logger *slog.Logger) *ContactRelayHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactRelayHandler{sender: sender, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *ContactRelayHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ContactRelayPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		metrics.ObserveContact("dropped")
		return fmt.Errorf("decode contact payload: %w", asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("recipient", payload.Message.Recipient),
	)

	ctx = portfolioapi.WithCorrelationID(ctx, payload.CorrelationID)
	err := h.sender.Contact(ctx, payload.Message)
	if err == nil {
		log.Info("contact message relayed")
		metrics.ObserveContact("relayed")
		return nil
	}

	if permanent(err) {
		log.Warn("contact message rejected by portfolio service", slog.String("reason", portfolioapi.Message(err)))
		metrics.ObserveContact("rejected")
		return fmt.Errorf("relay contact: %v: %w", err, asynq.SkipRetry)
	}

	if isFinalAsynqAttempt(ctx) {
		log.Error("contact relay exhausted retries", slog.Any("error", err))
		metrics.ObserveContact("dropped")
	} else {
		log.Warn("contact relay failed, will retry", slog.Any("error", err))
	}
	return fmt.Errorf("relay contact: %w", err)
}

// permanent reports upstream 4xx answers other than throttling; redelivery
// would only repeat them.
func permanent(err error) bool {
	var apiErr *portfolioapi.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
